// Package cloudsql resolves the Postgres connection string for both local
// development (DATABASE_URL) and Cloud Run deployments backed by Cloud SQL
// (Unix socket under /cloudsql).
package cloudsql

import (
	"fmt"
	"os"
	"strings"
)

// ResolveDatabaseURL returns the connection string to use. DATABASE_URL
// wins when set; otherwise INSTANCE_CONNECTION_NAME plus DB_USER/DB_NAME
// (and optional DB_PASSWORD) build a Cloud SQL socket connection.
func ResolveDatabaseURL() (string, error) {
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		return dbURL, nil
	}

	instance := os.Getenv("INSTANCE_CONNECTION_NAME")
	if instance == "" {
		return "", fmt.Errorf("neither DATABASE_URL nor INSTANCE_CONNECTION_NAME is set")
	}

	user := os.Getenv("DB_USER")
	name := os.Getenv("DB_NAME")
	if user == "" || name == "" {
		return "", fmt.Errorf("DB_USER and DB_NAME must be set when using INSTANCE_CONNECTION_NAME")
	}

	// Cloud Run mounts the instance socket at /cloudsql/<instance>.
	socket := "/cloudsql/" + instance
	if password := os.Getenv("DB_PASSWORD"); password != "" {
		return fmt.Sprintf("host=%s user=%s password=%s dbname=%s sslmode=disable",
			socket, user, password, name), nil
	}
	// IAM authentication needs no password.
	return fmt.Sprintf("host=%s user=%s dbname=%s sslmode=disable", socket, user, name), nil
}

// ConnectionInfo describes the resolved connection for startup logging,
// with credentials redacted.
func ConnectionInfo() map[string]string {
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		return map[string]string{
			"connection_type": "direct",
			"database_url":    redactPassword(dbURL),
		}
	}
	if instance := os.Getenv("INSTANCE_CONNECTION_NAME"); instance != "" {
		return map[string]string{
			"connection_type": "cloud_sql",
			"instance":        instance,
			"user":            os.Getenv("DB_USER"),
			"database":        os.Getenv("DB_NAME"),
		}
	}
	return map[string]string{"connection_type": "none"}
}

func redactPassword(connStr string) string {
	if strings.HasPrefix(connStr, "postgresql://") || strings.HasPrefix(connStr, "postgres://") {
		parts := strings.SplitN(connStr, "@", 2)
		if len(parts) == 2 {
			userParts := strings.Split(parts[0], ":")
			if len(userParts) >= 3 {
				return userParts[0] + "://" + userParts[1] + ":***@" + parts[1]
			}
		}
	}
	return connStr
}
