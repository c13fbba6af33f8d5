package photoengine

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
)

// IsAdmin checks if the current session is authenticated as the site admin.
func IsAdmin(c echo.Context) bool {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return false
	}
	auth, ok := sess.Values["authenticated"].(bool)
	return ok && auth
}

func setAdminSession(c echo.Context) error {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return err
	}
	sess.Values["authenticated"] = true
	return sess.Save(c.Request(), c.Response())
}

func clearAdminSession(c echo.Context) error {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return err
	}
	sess.Options.MaxAge = -1
	return sess.Save(c.Request(), c.Response())
}

// hasAlbumAccess reports whether this session has unlocked the given
// password-protected album.
func hasAlbumAccess(c echo.Context, albumID string) bool {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return false
	}
	ok, _ := sess.Values["album:"+albumID].(bool)
	return ok
}

func grantAlbumAccess(c echo.Context, albumID string) error {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return err
	}
	sess.Values["album:"+albumID] = true
	return sess.Save(c.Request(), c.Response())
}

func (a *App) handleAdminLogin(c echo.Context) error {
	if !a.loginLimiter.Check(c.RealIP()) {
		return c.JSON(http.StatusTooManyRequests, echo.Map{"error": "too many login attempts, try again later"})
	}

	var body struct {
		Password string `json:"password" form:"password"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	if subtle.ConstantTimeCompare([]byte(body.Password), []byte(a.Config.AdminPassword)) != 1 {
		a.loginLimiter.Record(c.RealIP())
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid password"})
	}
	if err := setAdminSession(c); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}

func handleAdminLogout(c echo.Context) error {
	if err := clearAdminSession(c); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}
