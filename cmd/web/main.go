// @title           DreamLog API
// @version         1.0
// @description     Backend for the DreamLog dream journaling app (Swagger documentation).
// @license.name    MIT
// @license.url     https://opensource.org/licenses/MIT
// @host            localhost:4000
// @BasePath        /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

package main

import "dreamlog_backend/internal/app"

func main() {
	app.Run()
}
