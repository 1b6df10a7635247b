package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gorilla/mux"

	"api-integrator/internal/mapping"
)

// DemoToken is the credential every demo fake accepts
const DemoToken = "12345678"

// DemoUser is the record a demo API serves
type DemoUser struct {
	FirstName string
	LastName  string
	Email     string
}

// ReceivedRequest is one request seen by a demo fake
type ReceivedRequest struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   interface{}
}

// DemoAPI is a running fake of one demo service
type DemoAPI struct {
	Name   string
	server *httptest.Server

	mu         sync.Mutex
	user       DemoUser
	received   []ReceivedRequest
	failStatus int
}

// URL returns the base URL of the fake
func (a *DemoAPI) URL() string {
	return a.server.URL
}

// Close stops the fake
func (a *DemoAPI) Close() {
	a.server.Close()
}

// SetUser replaces the served record
func (a *DemoAPI) SetUser(user DemoUser) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.user = user
}

// FailWith makes every route answer with status. Zero restores normal behaviour.
func (a *DemoAPI) FailWith(status int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failStatus = status
}

// Requests returns every request received, in arrival order
func (a *DemoAPI) Requests() []ReceivedRequest {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]ReceivedRequest(nil), a.received...)
}

// Calls counts the requests received for one route
func (a *DemoAPI) Calls(method, path string) int {
	n := 0
	for _, r := range a.Requests() {
		if r.Method == method && r.Path == path {
			n++
		}
	}
	return n
}

// Payloads returns the decoded bodies received for one route, in arrival order
func (a *DemoAPI) Payloads(method, path string) []interface{} {
	var payloads []interface{}
	for _, r := range a.Requests() {
		if r.Method == method && r.Path == path {
			payloads = append(payloads, r.Body)
		}
	}
	return payloads
}

func (a *DemoAPI) currentUser() DemoUser {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.user
}

// record stores the request and applies an injected failure
func (a *DemoAPI) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(bytes.NewReader(raw))

		var body interface{}
		if len(raw) > 0 {
			decoded, err := mapping.DecodeJSON(raw)
			if err != nil {
				decoded = string(raw)
			}
			body = decoded
		}

		a.mu.Lock()
		a.received = append(a.received, ReceivedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Header: r.Header.Clone(),
			Body:   body,
		})
		status := a.failStatus
		a.mu.Unlock()

		if status != 0 {
			writeJSON(w, status, map[string]string{"error": http.StatusText(status)})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func queryToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("demo-token") != DemoToken {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func headerToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Demo-Token") != DemoToken {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func health(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": name + " is on!"})
	}
}

func newDemoAPI(t testing.TB, name string, user DemoUser, auth mux.MiddlewareFunc, routes func(*DemoAPI, *mux.Router)) *DemoAPI {
	t.Helper()

	api := &DemoAPI{Name: name, user: user}

	router := mux.NewRouter()
	router.Use(api.record)
	router.HandleFunc("/", health(name)).Methods(http.MethodGet)

	protected := router.NewRoute().Subrouter()
	protected.Use(auth)
	routes(api, protected)

	api.server = httptest.NewServer(router)
	t.Cleanup(api.Close)
	return api
}

// NewAPI1 fakes the query-token service: GET and POST /user with snake_case fields
func NewAPI1(t testing.TB, user DemoUser) *DemoAPI {
	return newDemoAPI(t, "API 1", user, queryToken, func(api *DemoAPI, r *mux.Router) {
		r.HandleFunc("/user", func(w http.ResponseWriter, _ *http.Request) {
			u := api.currentUser()
			writeJSON(w, http.StatusOK, map[string]string{
				"first_name": u.FirstName,
				"last_name":  u.LastName,
				"user_email": u.Email,
			})
		}).Methods(http.MethodGet)
		r.HandleFunc("/user", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusCreated, map[string]string{"message": "User data received"})
		}).Methods(http.MethodPost)
	})
}

// NewAPI2 fakes the header-token service: POST /get-user and POST /update-user
func NewAPI2(t testing.TB, user DemoUser) *DemoAPI {
	return newDemoAPI(t, "API 2", user, headerToken, func(api *DemoAPI, r *mux.Router) {
		r.HandleFunc("/get-user", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, demoRecord(api.currentUser()))
		}).Methods(http.MethodPost)
		r.HandleFunc("/update-user", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusCreated, map[string]string{"message": "Payload received"})
		}).Methods(http.MethodPost)
	})
}

// NewAPI3 fakes the read-only header-token service: GET /user
func NewAPI3(t testing.TB, user DemoUser) *DemoAPI {
	return newDemoAPI(t, "API 3", user, headerToken, func(api *DemoAPI, r *mux.Router) {
		r.HandleFunc("/user", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, demoRecord(api.currentUser()))
		}).Methods(http.MethodGet)
	})
}

func demoRecord(u DemoUser) map[string]string {
	return map[string]string{
		"firstname": u.FirstName,
		"lastname":  u.LastName,
		"email":     u.Email,
	}
}

// DemoAPIs is the three-service demo environment
type DemoAPIs struct {
	API1 *DemoAPI
	API2 *DemoAPI
	API3 *DemoAPI
}

// NewDemoAPIs starts all three fakes with the given records
func NewDemoAPIs(t testing.TB, api1, api2, api3 DemoUser) *DemoAPIs {
	return &DemoAPIs{
		API1: NewAPI1(t, api1),
		API2: NewAPI2(t, api2),
		API3: NewAPI3(t, api3),
	}
}
