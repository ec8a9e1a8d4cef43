package httpserver

import "testing"

func TestValidateVendorName(t *testing.T) {
	t.Run("accepts", func(t *testing.T) {
		for _, n := range []string{"syncVendor", "async-vendor", "vendor_2"} {
			if vr := ValidateVendorName(n); !vr.Valid {
				t.Fatalf("should allow %s: %+v", n, vr.Errors)
			}
		}
	})
	t.Run("rejects", func(t *testing.T) {
		cases := map[string]string{
			"":              "REQUIRED",
			"bad name":      "INVALID_FORMAT",
			"vendor/../../": "INVALID_FORMAT",
		}
		for n, wantCode := range cases {
			vr := ValidateVendorName(n)
			if vr.Valid {
				t.Fatalf("should reject %q", n)
			}
			if vr.Errors[0].Code != wantCode {
				t.Fatalf("%q: want code %s, got %s", n, wantCode, vr.Errors[0].Code)
			}
		}
	})
	t.Run("rejects overlong", func(t *testing.T) {
		long := make([]byte, 101)
		for i := range long {
			long[i] = 'a'
		}
		if vr := ValidateVendorName(string(long)); vr.Valid {
			t.Fatal("should reject names over 100 characters")
		}
	})
}

func TestValidateLimit(t *testing.T) {
	if n, vr := ValidateLimit(""); !vr.Valid || n != defaultStatsLimit {
		t.Fatalf("empty limit: got %d valid=%v", n, vr.Valid)
	}
	if n, vr := ValidateLimit("25"); !vr.Valid || n != 25 {
		t.Fatalf("limit 25: got %d valid=%v", n, vr.Valid)
	}
	for _, raw := range []string{"0", "-3", "101", "abc", "1.5"} {
		if _, vr := ValidateLimit(raw); vr.Valid {
			t.Fatalf("should reject limit %q", raw)
		}
	}
}
