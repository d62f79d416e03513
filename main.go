package main

import (
	"context"
	"time"

	"github.com/shandysiswandi/otpguard/internal/app"
)

// @title           OTPGuard API
// @version         1.0
// @description     OTPGuard provides TOTP second-factor enrollment, login verification, recovery codes and trusted devices.
// @license.name    MIT
// @license.url     https://mit-license.org/
// @server          http://localhost:8080
// @securityDefinitions.apikey  BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT.
// @securityDefinitions.apikey  ServiceKey
// @in header
// @name X-Service-Key
// @description Shared key of the login service.
func main() {
	application := app.New()    // Initialize the application
	wait := application.Start() // Start the application and wait for the termination signal
	<-wait                      // Wait for the application to receive a termination signal
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	application.Stop(ctx) // Stop the application gracefully
}
