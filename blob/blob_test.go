package blob

import (
	"encoding/base64"
	"testing"
)

func TestNewStore(t *testing.T) {
	t.Setenv("AZURE_STORAGE_ACCOUNT", "")
	t.Setenv("AZURE_STORAGE_KEY", "")
	if _, err := NewStore(); err == nil {
		t.Error("expected error with missing credentials")
	}
	t.Setenv("AZURE_STORAGE_ACCOUNT", "testaccount")
	t.Setenv("AZURE_STORAGE_KEY", base64.StdEncoding.EncodeToString([]byte("secret")))
	s, err := NewStore()
	if err != nil {
		t.Fatal(err)
	}
	if s.account != "testaccount" {
		t.Error("account: got", s.account)
	}
}
