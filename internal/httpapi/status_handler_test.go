package httpapi

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

func TestStatus_ReflectsCursorsAdvancedByASync(t *testing.T) {
	s := newTestServer()
	r := s.Routes()

	tenantID, userID := uuid.New(), uuid.New()
	deviceID := uuid.New()

	pushBody := map[string]any{
		"deviceId": deviceID.String(),
		"changes": map[string]any{
			"moodLogs": []map[string]any{{"id": uuid.New().String(), "mood": "okay"}},
		},
	}
	pushReq := authedRequest(t, "POST", "/api/sync", pushBody, tenantID, userID, "crew")
	pushW := httptest.NewRecorder()
	r.ServeHTTP(pushW, pushReq)
	if pushW.Code != 200 {
		t.Fatalf("setup sync failed: status=%d body=%s", pushW.Code, pushW.Body.String())
	}

	statusReq := authedRequest(t, "GET", "/api/sync/status?deviceId="+deviceID.String(), nil, tenantID, userID, "crew")
	statusW := httptest.NewRecorder()
	r.ServeHTTP(statusW, statusReq)
	if statusW.Code != 200 {
		t.Fatalf("Status() status = %d, body = %s", statusW.Code, statusW.Body.String())
	}

	var resp statusResponse
	if err := json.NewDecoder(statusW.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.DeviceID != deviceID.String() {
		t.Errorf("DeviceID = %v, want %v", resp.DeviceID, deviceID)
	}
	if len(resp.Cursors) == 0 {
		t.Error("Status() should report at least one cursor after a sync call")
	}
}

func TestStatus_RejectsMissingDeviceID(t *testing.T) {
	s := newTestServer()
	r := s.Routes()

	req := authedRequest(t, "GET", "/api/sync/status", nil, uuid.New(), uuid.New(), "crew")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != 400 {
		t.Errorf("Status() status = %d, want 400 without a deviceId query param", w.Code)
	}
}
