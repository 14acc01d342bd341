package version

// Version is the server version reported during the MCP handshake.
// Overridden at build time via -ldflags "-X mcpd/internal/version.Version=...".
var Version = "0.3.0"

// ServerName identifies this server in initialize responses.
const ServerName = "mcpd"

// ProtocolVersion is the MCP protocol revision this server speaks.
const ProtocolVersion = "2024-11-05"
