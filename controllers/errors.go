package controllers

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strconv"

	"SellerHub/pkg/mailer"
	"SellerHub/pkg/mercadolibre"
	"SellerHub/pkg/services"
	"SellerHub/pkg/store"
	"SellerHub/pkg/woocommerce"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

var statusInText = regexp.MustCompile(`status (\d{3})`)

// statusFromError picks the HTTP status for err: sentinels first, then the
// upstream status, then a "status NNN" found in the message, else 500.
func statusFromError(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, services.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrSyncInProgress):
		return http.StatusConflict
	case errors.Is(err, services.ErrNotConfigured),
		errors.Is(err, mailer.ErrNotConfigured),
		errors.Is(err, mercadolibre.ErrNoToken):
		return http.StatusServiceUnavailable
	case errors.Is(err, mercadolibre.ErrNoRefreshToken):
		return http.StatusUnauthorized
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	if s := mercadolibre.StatusCode(err); s != 0 {
		return upstreamStatus(s)
	}
	if s := woocommerce.StatusCode(err); s != 0 {
		return upstreamStatus(s)
	}
	if m := statusInText.FindStringSubmatch(err.Error()); m != nil {
		if s, _ := strconv.Atoi(m[1]); s >= 400 && s < 600 {
			return upstreamStatus(s)
		}
	}
	return http.StatusInternalServerError
}

// upstreamStatus keeps client errors but reports upstream outages as 502.
// An upstream 401 means our platform credentials failed, not the admin's
// session, so it becomes 502 too.
func upstreamStatus(s int) int {
	switch {
	case s == http.StatusUnauthorized, s == http.StatusForbidden:
		return http.StatusBadGateway
	case s >= 500:
		return http.StatusBadGateway
	default:
		return s
	}
}

func respondError(c *gin.Context, err error) {
	status := statusFromError(err)
	if status >= 500 {
		log.Error().Str("component", "http").Err(err).Str("path", c.FullPath()).Int("status", status).Msg("request failed")
	}
	_ = c.Error(err)
	c.JSON(status, gin.H{"msg": err.Error()})
}
