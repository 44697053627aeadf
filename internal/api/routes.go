package api

const (
	HealthCheckRoute = "/healthz"
	AboutRoute       = "/about"

	WhoamiRoute = "/v1/whoami"
	PingRoute   = "/v1/ping"
)
