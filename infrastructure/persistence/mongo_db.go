package persistence

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// NewMongoDb connects to MongoDB. MONGO_URI, when set, overrides the
// host/port/credential settings.
func NewMongoDb(host, port, user, password, name string) (*mongo.Client, error) {
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		if host == "" {
			host = "localhost"
		}
		u := &url.URL{Scheme: "mongodb", Host: fmt.Sprintf("%s:%s", host, port), Path: "/"}
		if user != "" {
			u.User = url.UserPassword(user, password)
			q := url.Values{}
			q.Set("authSource", "admin")
			u.RawQuery = q.Encode()
		}
		uri = u.String()
	}
	opts := options.Client().
		ApplyURI(uri).
		SetAppName("autopost").
		SetServerSelectionTimeout(5 * time.Second).
		SetConnectTimeout(5 * time.Second)
	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo %s: %w", name, err)
	}
	return client, nil
}
