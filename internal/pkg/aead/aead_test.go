package aead

import (
	"reflect"
	"testing"
)

var testKey = []byte("0123456789abcdefghijklmnopqrstuv")

func TestSealAndOpen(t *testing.T) {
	plaintext := []byte(`{"oauth_token":"rt1","oauth_token_secret":"rts1"}`)

	c, err := NewMiscreantCipher(testKey)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	ciphertext, err := c.Seal(plaintext, []byte("_authdispatch"))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	if reflect.DeepEqual(plaintext, ciphertext) {
		t.Fatalf("plaintext is not encrypted plaintext:%v ciphertext:%x", plaintext, ciphertext)
	}

	got, err := c.Open(ciphertext, []byte("_authdispatch"))
	if err != nil {
		t.Fatalf("unexpected err decrypting: %v", err)
	}

	if !reflect.DeepEqual(got, plaintext) {
		t.Logf(" got: %v", got)
		t.Logf("want: %v", plaintext)
		t.Fatal("got unexpected decrypted value")
	}
}

func TestOpenRejectsOtherAssociatedData(t *testing.T) {
	c, err := NewMiscreantCipher(testKey)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	ciphertext, err := c.Seal([]byte("state"), []byte("cookie_a"))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	if _, err := c.Open(ciphertext, []byte("cookie_b")); err == nil {
		t.Fatal("expected error opening value sealed for a different name")
	}
}

func TestOpenRejectsShortValue(t *testing.T) {
	c, err := NewMiscreantCipher(testKey)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	_, err = c.Open([]byte("short"), nil)
	if err != ErrInvalidValue {
		t.Fatalf("expected ErrInvalidValue, got %v", err)
	}
}

func TestMarshalAndUnmarshalValues(t *testing.T) {
	c, err := NewMiscreantCipher(testKey)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	values := map[string]string{
		"oauth2_state": "c2VjcmV0OjE2MDAwMDAwMDA=",
	}

	value1, err := c.Marshal("_authdispatch", values)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	value2, err := c.Marshal("_authdispatch", values)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	if value1 == value2 {
		t.Fatalf("expected marshaled values to not be equal %v != %v", value1, value2)
	}

	got := map[string]string{}
	err = c.Unmarshal("_authdispatch", value1, &got)
	if err != nil {
		t.Fatalf("unexpected err unmarshalling: %v", err)
	}

	if !reflect.DeepEqual(got, values) {
		t.Logf("want: %#v", values)
		t.Logf(" got: %#v", got)
		t.Fatalf("expected values to be equal")
	}
}
