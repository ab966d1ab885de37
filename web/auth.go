package web

import (
	"crypto/subtle"
	"log"
	"net/http"
	"os"

	"github.com/goji/httpauth"
	"github.com/gorilla/securecookie"
)

const (
	cookieName  = "curvature-clues"
	cookieValue = "authenticated"
)

type AuthMiddleware struct {
	sc   *securecookie.SecureCookie
	opts httpauth.AuthOptions
}

// Setup new middleware for authenticating requests. Credentials are read from
// the CURV_WEB_USER and CURV_WEB_PASS environment variables.
func NewAuthMiddleware() AuthMiddleware {
	hashKey := []byte(securecookie.GenerateRandomKey(32))
	blockKey := []byte(securecookie.GenerateRandomKey(32))
	return AuthMiddleware{
		sc:   securecookie.New(hashKey, blockKey),
		opts: httpauth.AuthOptions{Realm: "Restricted", AuthFunc: authEnv},
	}
}

// If session cookie is not present then use basic auth to login and set a cookie.
func (mw AuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if cookie, err := r.Cookie(cookieName); err == nil {
			var value string
			if err = mw.sc.Decode(cookieName, cookie.Value, &value); err == nil && value == cookieValue {
				next.ServeHTTP(w, r)
				return
			}
		}
		httpauth.BasicAuth(mw.opts)(mw.setCookie(next)).ServeHTTP(w, r)
	})
}

func (mw AuthMiddleware) setCookie(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if encoded, err := mw.sc.Encode(cookieName, cookieValue); err == nil {
			cookie := &http.Cookie{Name: cookieName, Value: encoded, Path: "/"}
			http.SetCookie(w, cookie)
		} else {
			log.Println("error encoding cookie:", err)
		}
		h.ServeHTTP(w, r)
	})
}

func authEnv(user, pass string, r *http.Request) bool {
	envUser, envPass := os.Getenv("CURV_WEB_USER"), os.Getenv("CURV_WEB_PASS")
	if envUser == "" || envPass == "" {
		log.Println("auth: CURV_WEB_USER and CURV_WEB_PASS must be set")
		return false
	}
	ok := subtle.ConstantTimeCompare([]byte(user), []byte(envUser)) == 1 &&
		subtle.ConstantTimeCompare([]byte(pass), []byte(envPass)) == 1
	log.Println("auth", user, ok)
	return ok
}
