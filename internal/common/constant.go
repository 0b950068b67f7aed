package common

// AuthorizationHeader is the HTTP header that carries the session token on
// requests to protected routes.
const AuthorizationHeader = "Authorization"

// BearerPrefix is the expected scheme prefix inside AuthorizationHeader.
const BearerPrefix = "Bearer "
