package cookie

import (
	"net/http"
	"time"

	"github.com/dgellow/oauth-front/internal/log"
)

// Cookie names used by the auth flow
const (
	StateCookie   = "oauth_state"
	SessionCookie = "app_session"
	RefreshCookie = "refresh_token"
)

// Jar sets, reads and clears cookies under one security policy: HttpOnly,
// Path "/", SameSite=Lax, and Secure when the deployment requires it.
// It knows nothing about what the values mean.
type Jar struct {
	Secure bool
}

// NewJar creates a Jar. secure should be true for production deployments.
func NewJar(secure bool) *Jar {
	return &Jar{Secure: secure}
}

func (j *Jar) cookie(name, value string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   j.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// Set writes a cookie that expires after ttl.
func (j *Jar) Set(w http.ResponseWriter, name, value string, ttl time.Duration) {
	c := j.cookie(name, value)
	c.MaxAge = int(ttl.Seconds())
	c.Expires = time.Now().Add(ttl).UTC()
	http.SetCookie(w, c)

	log.LogTraceWithFields("cookie", "Cookie set", map[string]any{
		"name":   name,
		"maxAge": ttl.String(),
		"secure": j.Secure,
	})
}

// Get retrieves a cookie value from the request. Empty values are treated
// as absent.
func (j *Jar) Get(r *http.Request, name string) (string, bool) {
	c, err := r.Cookie(name)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

// Clear removes a cookie. It repeats the attributes used by Set so that
// browsers match and drop the stored cookie.
func (j *Jar) Clear(w http.ResponseWriter, name string) {
	c := j.cookie(name, "")
	c.MaxAge = -1
	c.Expires = time.Unix(0, 0).UTC()
	http.SetCookie(w, c)

	log.LogTraceWithFields("cookie", "Cookie cleared", map[string]any{
		"name": name,
	})
}
