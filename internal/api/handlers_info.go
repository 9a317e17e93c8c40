// handlers_info.go - Server address discovery handlers
package api

import (
	"net"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/lanbox/backend/internal/models"
	"github.com/lanbox/backend/internal/netinfo"
	qrcode "github.com/skip2/go-qrcode"
)

const qrSize = 256

// InfoHandlerImpl implements the InfoHandler interface
type InfoHandlerImpl struct {
	port int
	ips  func() []string
}

// NewInfoHandler creates an info handler reporting the given listen port
func NewInfoHandler(port int) *InfoHandlerImpl {
	return &InfoHandlerImpl{
		port: port,
		ips:  netinfo.LocalIPv4s,
	}
}

// HandleServerInfo returns the port and the non-loopback IPv4 addresses.
func (h *InfoHandlerImpl) HandleServerInfo(c echo.Context) error {
	return c.JSON(http.StatusOK, models.ServerInfo{
		Port:     h.port,
		LocalIPs: h.ips(),
	})
}

// HandleServerQRCode renders http://{ip}:{port} as a PNG. The ip query
// parameter picks the address; it defaults to the first LAN address.
func (h *InfoHandlerImpl) HandleServerQRCode(c echo.Context) error {
	host := c.QueryParam("ip")
	if host != "" {
		if ip := net.ParseIP(host); ip == nil || ip.To4() == nil {
			return NewBadRequestError("ip must be an IPv4 address", nil)
		}
	} else if ips := h.ips(); len(ips) > 0 {
		host = ips[0]
	} else {
		host = "localhost"
	}

	target := "http://" + net.JoinHostPort(host, strconv.Itoa(h.port))
	png, err := qrcode.Encode(target, qrcode.Medium, qrSize)
	if err != nil {
		return NewInternalError("failed to render QR code", err)
	}
	c.Response().Header().Set("X-Target-URL", target)
	return c.Blob(http.StatusOK, "image/png", png)
}
