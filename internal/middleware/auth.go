package middleware

import (
	"errors"
	"strconv"

	"viewbot/internal/domain"
	"viewbot/internal/service"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"
)

// AdminSessionKey is the context key holding the *service.AdminSession
const AdminSessionKey = "admin"

// AdminOnly lets a request through only when its sender passes the admin
// capability check, and hands the session to the handler
func AdminOnly(admin *service.AdminService, logger *zap.Logger) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if c.Sender() == nil {
				return nil
			}
			userID := strconv.FormatInt(c.Sender().ID, 10)

			session, err := admin.Session(userID)
			switch {
			case errors.Is(err, domain.ErrBanned):
				return c.Send("🚫 You are banned from using this bot.")
			case errors.Is(err, domain.ErrNotAdmin):
				logger.Warn("Admin command from non-admin",
					zap.String("user_id", userID),
					zap.String("text", c.Text()),
				)
				return c.Send("⛔️ Admins only. Use /admin to log in.")
			case err != nil:
				logger.Error("Admin check failed", zap.String("user_id", userID), zap.Error(err))
				return c.Send("⚠️ Something went wrong. Please try again later.")
			}

			c.Set(AdminSessionKey, session)
			return next(c)
		}
	}
}
