// Package mysql explores MySQL schemas through the mysql client binary.
//
// No Go database driver is used for exploration: every operation shells
// out to the mysql CLI and parses its tab-separated output. The password
// is handed to the child process via the MYSQL_PWD environment variable
// so it never appears in an argument list.
package mysql

// Conn holds the connection parameters for the CLI runner.
type Conn struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"-"`
	Database string `json:"database,omitempty"`
}

// Validate checks that the connection carries enough information to
// reach a server.
func (c Conn) Validate() error {
	if c.Host == "" || c.User == "" || c.Password == "" {
		return newValidationError("mysql connection is not fully configured (host/user/password required)")
	}
	return nil
}
