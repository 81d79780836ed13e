package httpapi

import (
	"context"
	"database/sql"
	"net/http"

	"accesshub.org/internal/access"
	"accesshub.org/internal/obs"
)

// ReadyProbe reports whether the service's backing store is reachable.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP layer over the access-control service.
type API struct {
	mux        *http.ServeMux
	service    *access.Service
	readyProbe ReadyProbe
	version    string

	maxBodyBytes  int64
	rateBurst     int
	ratePerSecond int
}

func New(service *access.Service, rp ReadyProbe, version string) *API {
	a := &API{
		mux:           http.NewServeMux(),
		service:       service,
		readyProbe:    rp,
		version:       version,
		maxBodyBytes:  1 << 20,
		rateBurst:     50,
		ratePerSecond: 25,
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	// dev token issuance
	a.mux.HandleFunc("/v1/auth/token", a.handleAuthToken)

	// tenancy and identity
	a.mux.HandleFunc("/v1/organizations", a.handleOrganizationsCollection)
	a.mux.HandleFunc("/v1/organizations/", a.handleOrganizationScoped)
	a.mux.HandleFunc("/v1/users", a.handleUsersCollection)
	a.mux.HandleFunc("/v1/users/", a.handleUserResource)

	// global permission catalog
	a.mux.HandleFunc("/v1/permissions", a.handlePermissionCatalog)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the fully wired handler chain for the server.
func (a *API) Handler() http.Handler {
	h := http.Handler(a.mux)
	h = a.withAuth(h)
	h = RateLimit(h, a.rateBurst, a.ratePerSecond)
	h = MaxBodyBytes(h, a.maxBodyBytes)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = Logging(h)
	h = RequestID(h)
	return obs.Instrument(h)
}
