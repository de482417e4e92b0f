package tests

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	. "github.com/trezcool/mahudhurio/apps/api/echo"
	emailsvc "github.com/trezcool/mahudhurio/services/email"
	testutil "github.com/trezcool/mahudhurio/tests"
)

func Test_exportApi_downloadCSV(t *testing.T) {
	app := setup(t)

	crs := testutil.CreateCourse(t, courseRepo, "Algorithms", "001", 25)
	rec1 := testutil.CreateRecord(t, attendanceRepo, crs, "Jane Doe", "X1", "192.0.2.10", clock.Now())
	rec2 := testutil.CreateRecord(t, attendanceRepo, crs, "Bob Roe", "X2", "192.0.2.11", clock.Now().Add(time.Minute))

	path := "/api/v1/admin/export/csv/" + crs.ID

	t.Run("LAN peers are rejected", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, path)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)}, rec)
	})

	t.Run("unknown course", func(t *testing.T) {
		req, rec := newAdminRequest(http.MethodGet, "/api/v1/admin/export/csv/deadbeef")
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "not_found", Message: "course not found"}),
		}, rec)
	})

	t.Run("downloaded", func(t *testing.T) {
		req, rec := newAdminRequest(http.MethodGet, path)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d; want %d; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		if ct := rec.Header().Get("Content-Type"); ct != "text/csv" {
			t.Errorf("Content-Type = %q; want %q", ct, "text/csv")
		}
		wantCD := `attachment; filename="attendance_algorithms_2021-03-15.csv"`
		if cd := rec.Header().Get("Content-Disposition"); cd != wantCD {
			t.Errorf("Content-Disposition = %q; want %q", cd, wantCD)
		}

		want := "timestamp,student_name,student_id,course_name,course_id\n" +
			fmt.Sprintf("%s,Jane Doe,X1,Algorithms,%s\n", rec1.Timestamp.UTC().Format(time.RFC3339), crs.ID) +
			fmt.Sprintf("%s,Bob Roe,X2,Algorithms,%s\n", rec2.Timestamp.UTC().Format(time.RFC3339), crs.ID)
		if got := rec.Body.String(); got != want {
			t.Errorf("body =\n%s\nwant\n%s", got, want)
		}
	})
}

func Test_exportApi_emailRoll(t *testing.T) {
	app := setup(t)

	crs := testutil.CreateCourse(t, courseRepo, "Algorithms", "001", 25)
	testutil.CreateRecord(t, attendanceRepo, crs, "Jane Doe", "X1", "192.0.2.10", clock.Now())

	path := "/api/v1/admin/export/email/" + crs.ID
	body := marchallObj(t, EmailRollRequest{To: []string{"Prof@Test.CD ", "ta@test.cd"}})

	run := func(tt httpTest) {
		t.Run(tt.name, func(t *testing.T) {
			tt.method = http.MethodPost
			req, rec := newTestRequest(tt)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	run(httpTest{
		name: "LAN peers are rejected", path: path, body: body,
		wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
	})
	run(httpTest{
		name: "unknown course", path: "/api/v1/admin/export/email/deadbeef", body: body, admin: true,
		wantCode: http.StatusNotFound,
		wantData: marchallObj(t, httpErr{Error: "not_found", Message: "course not found"}),
	})
	run(httpTest{
		name: "missing recipients", path: path, body: []byte("{}"), admin: true,
		wantCode: http.StatusBadRequest,
		wantData: marchallObj(t, httpErr{Error: "bad_request", Message: "to: this field is required"}),
	})

	t.Run("invalid recipient address", func(t *testing.T) {
		req, rec := newAdminRequest(http.MethodPost, path, marchallObj(t, EmailRollRequest{To: []string{"nope"}}))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d; want %d; body %s", rec.Code, http.StatusBadRequest, rec.Body.String())
		}
	})

	t.Run("sent", func(t *testing.T) {
		sentBefore := len(emailsvc.SentMessages)

		req, rec := newAdminRequest(http.MethodPost, path, body)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusOK,
			wantData: marchallObj(t, EmailRollResponse{Message: "Attendance roll sent."}),
		}, rec)

		if got := len(emailsvc.SentMessages); got != sentBefore+1 {
			t.Fatalf("len(SentMessages) = %d; want %d", got, sentBefore+1)
		}
		msg := emailsvc.SentMessages[len(emailsvc.SentMessages)-1]
		if want := "Attendance roll for Algorithms"; msg.Subject != want {
			t.Errorf("Subject = %q; want %q", msg.Subject, want)
		}
		if len(msg.To) != 2 || msg.To[0].Address != "prof@test.cd" || msg.To[1].Address != "ta@test.cd" {
			t.Errorf("To = %v; want cleaned [prof@test.cd ta@test.cd]", msg.To)
		}
		if len(msg.Attachments) != 1 {
			t.Fatalf("len(Attachments) = %d; want 1", len(msg.Attachments))
		}
		at := msg.Attachments[0]
		if want := "attendance_algorithms_2021-03-15.csv"; at.Filename != want {
			t.Errorf("Filename = %q; want %q", at.Filename, want)
		}
		if at.ContentType != "text/csv" {
			t.Errorf("ContentType = %q; want %q", at.ContentType, "text/csv")
		}
	})
}
