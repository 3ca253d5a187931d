package session

import (
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/MGallo-Code/obol/internal/signing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.UnixMilli(1_700_000_000_000)

func newTestCodec(t *testing.T) (*Codec, *signing.Signer) {
	t.Helper()
	s, err := signing.NewSigner([]byte("session-codec-test-key-0123456789"))
	require.NoError(t, err)
	return NewCodec(s), s
}

func TestCodec_RoundTrip(t *testing.T) {
	c, _ := newTestCodec(t)
	exp := testNow.Add(10 * time.Minute)

	t.Run("string", func(t *testing.T) {
		tok, err := c.Encode("xYz_-123", exp)
		require.NoError(t, err)

		var got string
		require.Equal(t, Valid, c.Decode(tok, testNow, &got))
		assert.Equal(t, "xYz_-123", got)
	})

	t.Run("struct", func(t *testing.T) {
		type payload struct {
			State string `json:"state"`
			N     int    `json:"n"`
		}
		in := payload{State: "s t;a=t,e\"", N: 42}
		tok, err := c.Encode(in, exp)
		require.NoError(t, err)

		var got payload
		require.Equal(t, Valid, c.Decode(tok, testNow, &got))
		assert.Equal(t, in, got)
	})

	t.Run("one millisecond before expiry", func(t *testing.T) {
		tok, err := c.Encode("v", exp)
		require.NoError(t, err)

		var got string
		assert.Equal(t, Valid, c.Decode(tok, exp.Add(-time.Millisecond), &got))
	})
}

func TestCodec_SeparatorInValue(t *testing.T) {
	c, _ := newTestCodec(t)
	exp := testNow.Add(time.Minute)

	for _, v := range []string{"a.b", "...", ".leading", "trailing.", "1700000000000.x.y"} {
		t.Run(v, func(t *testing.T) {
			tok, err := c.Encode(v, exp)
			require.NoError(t, err)
			require.Greater(t, strings.Count(tok, "."), 2, "value segment should carry raw separators")

			var got string
			require.Equal(t, Valid, c.Decode(tok, testNow, &got))
			assert.Equal(t, v, got)
		})
	}
}

func TestCodec_WireFormat(t *testing.T) {
	c, s := newTestCodec(t)
	exp := testNow.Add(time.Minute)

	tok, err := c.Encode("state", exp)
	require.NoError(t, err)

	parts := strings.SplitN(tok, ".", 3)
	require.Len(t, parts, 3)
	assert.Equal(t, strconv.FormatInt(exp.UnixMilli(), 10), parts[1])
	assert.Equal(t, "%22state%22", parts[2])
	assert.True(t, s.Verify(parts[0], []byte(parts[1]+"."+parts[2])))
}

func TestCodec_Expired(t *testing.T) {
	c, _ := newTestCodec(t)
	exp := testNow.Add(time.Minute)

	tok, err := c.Encode("v", exp)
	require.NoError(t, err)

	var got string
	assert.Equal(t, Expired, c.Decode(tok, exp, &got), "expiry equal to now")
	assert.Equal(t, Expired, c.Decode(tok, exp.Add(time.Millisecond), &got))
	assert.Equal(t, Expired, c.Decode(tok, exp.Add(24*time.Hour), &got))
	assert.Empty(t, got)
}

func TestCodec_TamperAnyByte(t *testing.T) {
	c, _ := newTestCodec(t)
	tok, err := c.Encode("a.b-state", testNow.Add(time.Minute))
	require.NoError(t, err)

	for i := range len(tok) {
		b := []byte(tok)
		if b[i] == 'A' {
			b[i] = 'B'
		} else {
			b[i] = 'A'
		}
		var got string
		status := c.Decode(string(b), testNow, &got)
		if status != InvalidSignature && status != Malformed {
			t.Fatalf("byte %d flipped: expected invalid_signature or malformed, got %s", i, status)
		}
	}
}

func TestCodec_ForeignKey(t *testing.T) {
	c, _ := newTestCodec(t)
	other, err := signing.NewSigner([]byte("some-other-deployment-key"))
	require.NoError(t, err)

	tok, err := NewCodec(other).Encode("v", testNow.Add(time.Minute))
	require.NoError(t, err)

	var got string
	assert.Equal(t, InvalidSignature, c.Decode(tok, testNow, &got))
}

func TestCodec_VerifiesBeforeInterpreting(t *testing.T) {
	c, s := newTestCodec(t)

	// Unsigned garbage in the expiry field must report the signature, not the parse.
	assert.Equal(t, InvalidSignature, c.Decode("bogus.notanumber.%22v%22", testNow, new(string)))
	// Forged expiry in the past with a bad signature is still a signature failure.
	assert.Equal(t, InvalidSignature, c.Decode("bogus.1.%22v%22", testNow, new(string)))

	// Correctly signed but semantically broken fields are malformed.
	signed := "notanumber.%22v%22"
	assert.Equal(t, Malformed, c.Decode(s.Sign([]byte(signed))+"."+signed, testNow, new(string)))

	future := strconv.FormatInt(testNow.Add(time.Minute).UnixMilli(), 10)
	signed = future + ".%ZZ"
	assert.Equal(t, Malformed, c.Decode(s.Sign([]byte(signed))+"."+signed, testNow, new(string)))
	signed = future + ".%7Bnot-json"
	assert.Equal(t, Malformed, c.Decode(s.Sign([]byte(signed))+"."+signed, testNow, new(string)))
}

func TestCodec_Malformed(t *testing.T) {
	c, _ := newTestCodec(t)

	cases := map[string]string{
		"empty":          "",
		"no separator":   "abcdef",
		"one separator":  "abc.1700000000000",
		"oversized":      strings.Repeat("a", MaxTokenLen) + ".1.x",
		"only separator": ".",
	}
	for name, tok := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, Malformed, c.Decode(tok, testNow, new(string)))
		})
	}
}

func TestCodec_EncodeUnmarshalable(t *testing.T) {
	c, _ := newTestCodec(t)
	_, err := c.Encode(make(chan int), testNow)
	assert.Error(t, err)
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "valid", Valid.String())
	assert.Equal(t, "invalid_signature", InvalidSignature.String())
	assert.Equal(t, "expired", Expired.String())
	assert.Equal(t, "malformed", Malformed.String())
	assert.Equal(t, "unknown", Status(99).String())
}
