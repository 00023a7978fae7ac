package noopcodec

import (
	"testing"
)

func TestCodec_CopiesInput(t *testing.T) {
	c := New()
	src := []byte("value")

	enc, _ := c.Encode(src)
	src[0] = 'X'
	if string(enc) != "value" {
		t.Errorf("Encode() aliases input: got %q", enc)
	}

	dec, _ := c.Decode(enc)
	enc[0] = 'Y'
	if string(dec) != "value" {
		t.Errorf("Decode() aliases input: got %q", dec)
	}
}

func TestCodec_Nil(t *testing.T) {
	dec, err := New().Decode(nil)
	if err != nil || dec == nil || len(dec) != 0 {
		t.Errorf("Decode(nil) = %v, %v, want empty non-nil", dec, err)
	}
}
