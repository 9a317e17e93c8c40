package models

// ServerInfo is what the client page shows so other devices on the LAN can connect.
type ServerInfo struct {
	Port     int      `json:"port"`
	LocalIPs []string `json:"localIPs"`
}
