package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"autopost/domain/dto"
	"autopost/domain/errs"
	"autopost/domain/model"
	"autopost/domain/repository"
	"autopost/infrastructure/logger"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"
)

// Auth validates the bearer token and sets "user_id" on the context.
func Auth(userRepository repository.IUser, secretKey string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		res := dto.Res{ResponseCode: "401", ResponseMessage: "Unauthorized"}

		authorization := ctx.Request.Header.Get("Authorization")
		if authorization == "" {
			// EventSource cannot set headers, so the stream passes the token as a query param.
			if tok := ctx.Query("access_token"); tok != "" {
				authorization = "Bearer " + tok
			}
		}
		auth := strings.Split(authorization, "Bearer ")
		if len(auth) != 2 || auth[1] == "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, res)
			return
		}

		userClaims, token, err := getClaim(auth[1], secretKey)
		if err != nil || token == nil || !token.Valid {
			res.ResponseMessage = abortMessage(err)
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, res)
			return
		}
		next(ctx, userRepository, userClaims, res)
	}
}

func abortMessage(err error) string {
	var ve *jwt.ValidationError
	if errors.As(err, &ve) {
		if ve.Errors&jwt.ValidationErrorMalformed != 0 {
			return "That's not even a token"
		} else if ve.Errors&(jwt.ValidationErrorExpired|jwt.ValidationErrorNotValidYet) != 0 {
			// Token is either expired or not active yet
			return "Timing is everything"
		}
		return fmt.Sprintf("Couldn't handle this token:%v", err)
	}
	return "Unauthorized"
}

func next(ctx *gin.Context, userRepository repository.IUser, userClaims model.UserClaims, res dto.Res) {
	userID := userClaims.Subject
	if userID == "" {
		userID = userClaims.Issuer
	}
	if userID == "" {
		ctx.AbortWithStatusJSON(http.StatusUnauthorized, res)
		return
	}
	_, err := userRepository.GetByID(ctx.Request.Context(), userID)
	if errors.Is(err, errs.ErrNotFound) {
		logger.GetLogger().WithField("user_id", userID).Warn("token for unknown user")
		ctx.AbortWithStatusJSON(http.StatusUnauthorized, res)
		return
	}
	if err != nil {
		logger.GetLogger().WithField("user_id", userID).WithError(err).Error("user lookup failed")
		ctx.AbortWithStatusJSON(http.StatusServiceUnavailable, dto.Res{ResponseCode: "503", ResponseMessage: "Service unavailable"})
		return
	}
	ctx.Set("user_id", userID)
	ctx.Next()
}

func getClaim(raw, secretKey string) (model.UserClaims, *jwt.Token, error) {
	var userClaims model.UserClaims
	token, err := jwt.ParseWithClaims(
		raw,
		&userClaims,
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
			}
			return []byte(secretKey), nil
		},
	)
	return userClaims, token, err
}
