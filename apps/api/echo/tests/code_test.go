package tests

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	. "github.com/trezcool/mahudhurio/apps/api/echo"
	"github.com/trezcool/mahudhurio/core"
	testutil "github.com/trezcool/mahudhurio/tests"
)

func Test_codeApi_current(t *testing.T) {
	app := setup(t)

	crs := testutil.CreateCourse(t, courseRepo, "Algorithms", "001", 25)
	path := "/api/v1/admin/confirmation-code/" + crs.ID
	lifetime := core.Conf.Code.Lifetime

	getCode := func(t *testing.T, path string, wantCode int) CodeResponse {
		t.Helper()
		req, rec := newAdminRequest(http.MethodGet, path)
		app.ServeHTTP(rec, req)
		if rec.Code != wantCode {
			t.Fatalf("status = %d; want %d; body %s", rec.Code, wantCode, rec.Body.String())
		}
		var resp CodeResponse
		if wantCode == http.StatusOK {
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("unmarshalling CodeResponse: %v", err)
			}
		}
		return resp
	}

	t.Run("LAN peers are rejected", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, path)
		app.ServeHTTP(rec, req)
		tt := httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)}
		checkCodeAndData(t, tt, rec)
	})

	t.Run("unknown course", func(t *testing.T) {
		req, rec := newAdminRequest(http.MethodGet, "/api/v1/admin/confirmation-code/deadbeef")
		app.ServeHTTP(rec, req)
		tt := httpTest{
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "not_found", Message: "course not found"}),
		}
		checkCodeAndData(t, tt, rec)
	})

	var first CodeResponse

	t.Run("minted on first read", func(t *testing.T) {
		first = getCode(t, path, http.StatusOK)
		if len(first.Code) != core.Conf.Code.Length {
			t.Errorf("Code = %q; want %d chars", first.Code, core.Conf.Code.Length)
		}
		for _, r := range first.Code {
			if !strings.ContainsRune(core.Conf.Code.Alphabet, r) {
				t.Errorf("Code %q contains %q, not in alphabet %q", first.Code, r, core.Conf.Code.Alphabet)
			}
		}
		if want := clock.Now().Add(lifetime); !first.ExpiresAt.Equal(want) {
			t.Errorf("ExpiresAt = %s; want %s", first.ExpiresAt, want)
		}
		if want := int64(lifetime / time.Second); first.ExpiresInSeconds != want {
			t.Errorf("ExpiresInSeconds = %d; want %d", first.ExpiresInSeconds, want)
		}
	})

	t.Run("stable within its lifetime", func(t *testing.T) {
		clock.Advance(2 * time.Minute)
		resp := getCode(t, path, http.StatusOK)
		if resp.Code != first.Code {
			t.Errorf("Code = %q; want %q", resp.Code, first.Code)
		}
		if !resp.ExpiresAt.Equal(first.ExpiresAt) {
			t.Errorf("ExpiresAt = %s; want %s", resp.ExpiresAt, first.ExpiresAt)
		}
		if want := int64((lifetime - 2*time.Minute) / time.Second); resp.ExpiresInSeconds != want {
			t.Errorf("ExpiresInSeconds = %d; want %d", resp.ExpiresInSeconds, want)
		}
	})

	var rotated CodeResponse

	t.Run("rotated once expired", func(t *testing.T) {
		clock.Set(first.ExpiresAt) // expiry is inclusive
		rotated = getCode(t, path, http.StatusOK)
		if want := clock.Now().Add(lifetime); !rotated.ExpiresAt.Equal(want) {
			t.Errorf("ExpiresAt = %s; want %s", rotated.ExpiresAt, want)
		}
		if want := int64(lifetime / time.Second); rotated.ExpiresInSeconds != want {
			t.Errorf("ExpiresInSeconds = %d; want %d", rotated.ExpiresInSeconds, want)
		}
	})

	t.Run("courses get independent codes", func(t *testing.T) {
		clock.Advance(time.Minute)
		other := testutil.CreateCourse(t, courseRepo, "Biology", "001", 30)
		resp := getCode(t, "/api/v1/admin/confirmation-code/"+other.ID, http.StatusOK)
		if want := clock.Now().Add(lifetime); !resp.ExpiresAt.Equal(want) {
			t.Errorf("ExpiresAt = %s; want %s", resp.ExpiresAt, want)
		}

		// minting Biology's code must not disturb Algorithms'
		cur := currentCode(t, crs.ID)
		if cur.Value != rotated.Code || !cur.ExpiresAt.Equal(rotated.ExpiresAt) {
			t.Errorf("Algorithms code = %q (%s); want %q (%s)", cur.Value, cur.ExpiresAt, rotated.Code, rotated.ExpiresAt)
		}
	})
}
