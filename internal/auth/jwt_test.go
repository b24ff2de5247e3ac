package auth

import (
	"testing"
	"time"
)

const testKey = "test-signing-key"

func TestIssueParse_RoundTrip(t *testing.T) {
	pair, err := Issue(42, "jo", true, "qrattend", testKey, time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	claims, err := Parse(pair.AccessToken, testKey, "qrattend")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.StaffID != 42 || claims.Username != "jo" || !claims.Admin {
		t.Errorf("claims = %+v", claims)
	}
}

func TestParse_WrongKey(t *testing.T) {
	pair, err := Issue(1, "jo", false, "qrattend", testKey, time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := Parse(pair.AccessToken, "other-key", "qrattend"); err == nil {
		t.Fatal("token signed with a different key parsed successfully")
	}
}

func TestParse_IssuerMismatch(t *testing.T) {
	pair, err := Issue(1, "jo", false, "someone-else", testKey, time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := Parse(pair.AccessToken, testKey, "qrattend"); err == nil {
		t.Fatal("token with wrong issuer parsed successfully")
	}
}

func TestParse_Expired(t *testing.T) {
	pair, err := Issue(1, "jo", false, "qrattend", testKey, -time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := Parse(pair.AccessToken, testKey, "qrattend"); err == nil {
		t.Fatal("expired token parsed successfully")
	}
}

func TestHashCheckPassword(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "s3cret" {
		t.Fatal("password stored in the clear")
	}
	if !CheckPassword(hash, "s3cret") {
		t.Error("correct password rejected")
	}
	if CheckPassword(hash, "wrong") {
		t.Error("wrong password accepted")
	}
}
