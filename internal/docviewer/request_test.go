package docviewer

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
)

func TestParseInlineRequiresFields(t *testing.T) {
	cases := []struct {
		name    string
		params  []FileInfo
		missing []string
	}{
		{name: "empty list", params: nil, missing: []string{"base64", "fileName", "fileType"}},
		{name: "no base64", params: []FileInfo{{FileName: "a.pdf", FileType: "pdf"}}, missing: []string{"base64"}},
		{name: "no name", params: []FileInfo{{Base64: "YQ==", FileType: "pdf"}}, missing: []string{"fileName"}},
		{name: "blank type", params: []FileInfo{{Base64: "YQ==", FileName: "a.pdf", FileType: "  "}}, missing: []string{"fileType"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseInline(tc.params)
			var missingErr *MissingParamsError
			if !errors.As(err, &missingErr) {
				t.Fatalf("expected MissingParamsError, got %v", err)
			}
			if err.Error() != "Requires parameters: base64, fileName, fileType" {
				t.Fatalf("unexpected message %q", err.Error())
			}
			if len(missingErr.Missing) != len(tc.missing) {
				t.Fatalf("missing = %v, want %v", missingErr.Missing, tc.missing)
			}
			for i := range tc.missing {
				if missingErr.Missing[i] != tc.missing[i] {
					t.Fatalf("missing = %v, want %v", missingErr.Missing, tc.missing)
				}
			}
		})
	}
}

func TestParseInlineUsesFirstElement(t *testing.T) {
	req, err := ParseInline([]FileInfo{
		{Base64: "YQ==", FileName: " a.pdf ", FileType: "pdf", Cache: true},
		{Base64: "Yg==", FileName: "b.pdf", FileType: "pdf"},
	})
	if err != nil {
		t.Fatalf("ParseInline error: %v", err)
	}
	if req.FileName != "a.pdf" || req.Data != "YQ==" || !req.Cache {
		t.Fatalf("unexpected request %+v", req)
	}
}

func TestParseRemote(t *testing.T) {
	if _, err := ParseRemote([]FileInfo{{FileName: "a.pdf"}}); err == nil || err.Error() != "Requires parameters: url" {
		t.Fatalf("expected url requirement, got %v", err)
	}

	req, err := ParseRemote([]FileInfo{{URL: "https://host/a.pdf", FileType: "pdf", Cache: true}})
	if err != nil {
		t.Fatalf("ParseRemote error: %v", err)
	}
	if req.URL != "https://host/a.pdf" || req.FileType != "pdf" || !req.Cache {
		t.Fatalf("unexpected request %+v", req)
	}
}

func TestDecodeBase64Variants(t *testing.T) {
	raw := []byte{0xfb, 0xff, 0x01, 'd', 'o', 'c'}
	cases := map[string]string{
		"std":      base64.StdEncoding.EncodeToString(raw),
		"raw std":  base64.RawStdEncoding.EncodeToString(raw),
		"url":      base64.URLEncoding.EncodeToString(raw),
		"raw url":  base64.RawURLEncoding.EncodeToString(raw),
		"data uri": "data:application/pdf;base64," + base64.StdEncoding.EncodeToString(raw),
		"wrapped":  base64.StdEncoding.EncodeToString(raw)[:4] + "\n" + base64.StdEncoding.EncodeToString(raw)[4:],
	}
	for name, input := range cases {
		got, err := DecodeBase64(input)
		if err != nil {
			t.Fatalf("%s: decode error %v", name, err)
		}
		if string(got) != string(raw) {
			t.Fatalf("%s: got %v, want %v", name, got, raw)
		}
	}

	for _, bad := range []string{"", "data:text/plain,hello", "%%%"} {
		if _, err := DecodeBase64(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestFutureResolvesOnce(t *testing.T) {
	f := newFuture()
	if _, _, ok := f.Result(); ok {
		t.Fatalf("new future must be pending")
	}
	if !f.resolve(Result{URI: "file:///a"}, nil) {
		t.Fatalf("first resolve should win")
	}
	if f.resolve(Result{}, errors.New("late")) {
		t.Fatalf("second resolve must be ignored")
	}

	res, err := f.Wait(context.Background())
	if err != nil || res.URI != "file:///a" {
		t.Fatalf("unexpected outcome %+v %v", res, err)
	}
	if _, err, ok := f.Result(); !ok || err != nil {
		t.Fatalf("resolved future should report ok without error")
	}

	done := Resolved(Result{}, ErrDownloadFailed)
	select {
	case <-done.Done():
	default:
		t.Fatalf("Resolved future should be done")
	}
}
