package httpx

const (
	registerPath = "/api/auth/register"
	loginPath    = "/api/auth/login"
	profilePath  = "/api/user/profile"
	adminPath    = "/api/admin/dashboard"
	healthPath   = "/healthz"

	maxRequestBytes = 64 << 10
)
