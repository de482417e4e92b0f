package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	. "github.com/trezcool/mahudhurio/apps/api/echo"
	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
	"github.com/trezcool/mahudhurio/core/code"
	"github.com/trezcool/mahudhurio/core/course"
	"github.com/trezcool/mahudhurio/core/preference"
	"github.com/trezcool/mahudhurio/core/presence"
	emailsvc "github.com/trezcool/mahudhurio/services/email"
	exportsvc "github.com/trezcool/mahudhurio/services/export"
	dummydb "github.com/trezcool/mahudhurio/storage/database/dummy"
	testutil "github.com/trezcool/mahudhurio/tests"
)

// adminPeer is a loopback RemoteAddr; lanPeer is what httptest defaults to.
const (
	adminPeer = "127.0.0.1:41230"
	lanPeer   = "192.0.2.1:1234"
)

var (
	courseRepo     course.Repository
	attendanceRepo attendance.Repository
	prefRepo       preference.Repository
	courseSvc      course.ServiceInterface
	attendanceSvc  attendance.ServiceInterface
	engine         *code.Engine
	hub            *presence.Hub
	clock          *testutil.Clock

	errForbidden = httpErr{Error: "forbidden", Message: "this resource is only accessible from the host machine"}
)

func setup(t *testing.T, mutateConf ...func(conf *core.Config)) Server {
	core.Conf = testutil.NewConfig()
	for _, mutate := range mutateConf {
		mutate(core.Conf)
	}

	// set up repos
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open() failed: %v", err)
	}
	courseRepo = dummydb.NewCourseRepository(db)
	attendanceRepo = dummydb.NewAttendanceRepository(db)
	prefRepo = dummydb.NewPreferenceRepository(db)

	// set up services
	clock = testutil.NewClock(time.Date(2021, 3, 15, 10, 0, 0, 0, time.UTC))
	logger := testutil.NewLogger()
	mailSvc := emailsvc.NewConsoleServiceMock(core.Conf)

	hub = presence.NewHub(attendanceRepo, clock, logger)
	engine = code.NewEngine(courseRepo, clock, core.Conf.Code, logger)
	courseSvc = course.NewService(courseRepo, prefRepo, hub, clock, logger)
	attendanceSvc = attendance.NewService(attendanceRepo, courseSvc, engine, hub, clock, logger)
	exportSvc := exportsvc.NewService(courseSvc, attendanceSvc, mailSvc, clock)

	validate := validator.New()
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	core.InitValidators(validate, translator)

	// set up server
	return NewServer(
		&Options{
			DisableReqLogs: true,
			Logger:         logger,
			Clock:          clock,
			CourseSvc:      courseSvc,
			AttendanceSvc:  attendanceSvc,
			CodeEngine:     engine,
			Hub:            hub,
			ExportSvc:      exportSvc,
			Validate:       validate,
			Translator:     translator,
		},
	)
}

type httpErr struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	admin    bool   // request originates from the host machine
	peer     string // overrides the default RemoteAddr
	wantCode int
	wantData []byte
	extra    interface{}
}

func newPeerRequest(method, path, peer string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if peer != "" {
		req.RemoteAddr = peer
	}
	rec := httptest.NewRecorder()
	return req, rec
}

// newRequest builds a request from a LAN peer (httptest's default RemoteAddr).
func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newPeerRequest(method, path, "", data...)
}

// newAdminRequest builds a request from the host machine.
func newAdminRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newPeerRequest(method, path, adminPeer, data...)
}

func newTestRequest(tt httpTest) (*http.Request, *httptest.ResponseRecorder) {
	switch {
	case tt.peer != "":
		return newPeerRequest(tt.method, tt.path, tt.peer, tt.body)
	case tt.admin:
		return newAdminRequest(tt.method, tt.path, tt.body)
	default:
		return newRequest(tt.method, tt.path, tt.body)
	}
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

// nolint
func marchallList(t *testing.T, objs ...interface{}) []byte {
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()

	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

// currentCode mints-or-returns the course's live confirmation code.
func currentCode(t *testing.T, courseID string) code.Code {
	t.Helper()

	c, err := engine.Current(context.Background(), courseID)
	if err != nil {
		t.Fatalf("engine.Current() failed: %v", err)
	}
	return c
}
