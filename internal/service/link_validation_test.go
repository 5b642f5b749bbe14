package service

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestValidateURL(t *testing.T) {
	t.Parallel()

	longURL := "https://example.com/" + strings.Repeat("a", maxURLLength)

	tests := []struct {
		name    string
		raw     string
		wantErr error
	}{
		{"empty", "", ErrInvalidTarget},
		{"invalid_scheme", "ftp://example.com", ErrInvalidTarget},
		{"javascript", "javascript:alert(1)", ErrInvalidTarget},
		{"missing_host", "https://", ErrInvalidTarget},
		{"relative", "/path", ErrInvalidTarget},
		{"too_long", longURL, ErrURLTooLong},
		{"valid", "https://example.com/path", nil},
		{"valid_http", "http://example.com", nil},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			err := validateURL(test.raw, ErrInvalidTarget)
			if !errors.Is(err, test.wantErr) {
				t.Fatalf("validateURL(%q) = %v, want %v", test.raw, err, test.wantErr)
			}
		})
	}
}

func TestCreateLinkValidationErrors(t *testing.T) {
	t.Parallel()

	svc := NewLinkService(newFakeStore(), newFakeCache(), "https://sl.example", nil, nil)

	tests := []struct {
		name    string
		input   CreateLinkInput
		wantErr error
	}{
		{"invalid_target", CreateLinkInput{TargetURL: "notaurl"}, ErrInvalidTarget},
		{"invalid_safe_url", CreateLinkInput{TargetURL: "https://example.com", SafeURL: "ftp://x"}, ErrInvalidSafeURL},
		{"invalid_alias", CreateLinkInput{TargetURL: "https://example.com", Alias: "!!"}, ErrInvalidAlias},
		{"reserved_alias", CreateLinkInput{TargetURL: "https://example.com", Alias: "Safe"}, ErrInvalidAlias},
		{"title_too_long", CreateLinkInput{TargetURL: "https://example.com", Title: strings.Repeat("t", maxTitleLength+1)}, ErrInvalidTitle},
		{"description_too_long", CreateLinkInput{TargetURL: "https://example.com", Description: strings.Repeat("d", maxDescLength+1)}, ErrInvalidDesc},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			_, err := svc.CreateLink(context.Background(), test.input)
			if !errors.Is(err, test.wantErr) {
				t.Fatalf("expected %v, got %v", test.wantErr, err)
			}
		})
	}
}

func TestCreateLink_Defaults(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	svc := NewLinkService(store, newFakeCache(), "https://sl.example/", nil, nil)

	link, err := svc.CreateLink(context.Background(), CreateLinkInput{TargetURL: "https://shop.example.com/p/1"})
	if err != nil {
		t.Fatalf("CreateLink() error = %v", err)
	}

	if len(link.ShortCode) != aliasLength || !aliasRegex.MatchString(link.ShortCode) {
		t.Errorf("generated short code %q is not a %d-char alias", link.ShortCode, aliasLength)
	}
	if len(link.ID) != 26 {
		t.Errorf("ID %q is not a ULID", link.ID)
	}
	if link.Title != "shop.example.com" {
		t.Errorf("Title = %q, want target host", link.Title)
	}
	if !link.UseJSChallenge || !link.DirectFromTikTok || !link.Enabled {
		t.Errorf("flags = %v/%v/%v, want all true", link.UseJSChallenge, link.DirectFromTikTok, link.Enabled)
	}
	if got := svc.ShortURL(link); got != "https://sl.example/"+link.ShortCode {
		t.Errorf("ShortURL() = %q", got)
	}
}

func TestCreateLink_AliasExists(t *testing.T) {
	t.Parallel()

	svc := NewLinkService(newFakeStore(testLink("promo1")), newFakeCache(), "", nil, nil)

	_, err := svc.CreateLink(context.Background(), CreateLinkInput{TargetURL: "https://example.com", Alias: "promo1"})
	if !errors.Is(err, ErrAliasExists) {
		t.Fatalf("expected ErrAliasExists, got %v", err)
	}
}

func TestCreateLink_ExplicitFlags(t *testing.T) {
	t.Parallel()

	off := false
	svc := NewLinkService(newFakeStore(), newFakeCache(), "", nil, nil)

	link, err := svc.CreateLink(context.Background(), CreateLinkInput{
		TargetURL:        "https://example.com",
		SafeURL:          "https://example.org/blog",
		Title:            "  Spring  ",
		Alias:            "spring_sale",
		UseJSChallenge:   &off,
		DirectFromTikTok: &off,
	})
	if err != nil {
		t.Fatalf("CreateLink() error = %v", err)
	}
	if link.UseJSChallenge || link.DirectFromTikTok {
		t.Errorf("explicit false flags not kept")
	}
	if link.Title != "Spring" || link.ShortCode != "spring_sale" {
		t.Errorf("link = %+v", link)
	}
}
