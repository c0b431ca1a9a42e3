package model

import (
	"time"

	"github.com/golang-jwt/jwt"
)

// User owns posts and holds the LinkedIn connection.
type User struct {
	ID        string             `json:"id"         bson:"_id"`
	Email     string             `json:"email"      bson:"email"`
	Name      string             `json:"name"       bson:"name"`
	PlanID    string             `json:"plan_id"    bson:"planId"`
	LinkedIn  LinkedInConnection `json:"linkedin"   bson:"linkedin"`
	CreatedAt time.Time          `json:"created_at" bson:"createdAt"`
	UpdatedAt time.Time          `json:"updated_at" bson:"updatedAt"`
}

// LinkedInConnection is the platform credential stored on the user.
type LinkedInConnection struct {
	Connected    bool       `json:"connected"            bson:"connected"`
	AccessToken  string     `json:"-"                    bson:"accessToken"`
	RefreshToken string     `json:"-"                    bson:"refreshToken,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty" bson:"expiresAt,omitempty"`
	AccountURN   string     `json:"account_urn"          bson:"accountUrn"`
}

// UserClaims are the JWT claims issued by the authentication service.
type UserClaims struct {
	Email string `json:"email"`
	jwt.StandardClaims
}
