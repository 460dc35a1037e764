package httpserver

import (
	"github.com/labstack/echo/v4"

	"github.com/hamropasal/storefront/internal/handlers"
	"github.com/hamropasal/storefront/internal/handlers/cart"
	"github.com/hamropasal/storefront/internal/service/token"
)

type Deps struct {
	AuthHandler    *handlers.AuthHandler
	ProductHandler *handlers.ProductHandler
	CartHandler    *cart.CartHandler
	OrderHandler   *handlers.OrderHandler
	WalletHandler  *handlers.WalletHandler
	AdminHandler   *handlers.AdminHandler
	SearchHandler  *handlers.SearchHandler
	Tokens         *token.Service
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(200) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(200) })

	v1 := e.Group("/api/v1")

	v1.POST("/register", d.AuthHandler.Register)
	v1.POST("/login", d.AuthHandler.Login)
	v1.POST("/logout", d.AuthHandler.LogOut)
	v1.GET("/search", d.SearchHandler.Search)

	products := v1.Group("/products")
	products.GET("", d.ProductHandler.GetProducts)
	products.GET("/:id", d.ProductHandler.GetProduct)

	user := v1.Group("", d.Tokens.AutoRefreshMiddleware)

	user.GET("/cart", d.CartHandler.GetCart)
	user.POST("/cart", d.CartHandler.AddToCart)
	user.DELETE("/cart/:id", d.CartHandler.DeleteOneFromCart)
	user.DELETE("/cart", d.CartHandler.ClearCart)

	user.POST("/orders", d.OrderHandler.Checkout)
	user.GET("/orders", d.OrderHandler.ListOrders)
	user.GET("/orders/:id", d.OrderHandler.GetOrder)
	user.POST("/orders/:id/proof", d.OrderHandler.AttachProof)

	user.GET("/wallet", d.WalletHandler.GetBalance)
	user.GET("/wallet/transactions", d.WalletHandler.GetTransactions)
	user.POST("/wallet/topup", d.WalletHandler.RequestTopup)
	user.GET("/wallet/topup", d.WalletHandler.ListTopups)

	admin := v1.Group("/admin", d.Tokens.AutoRefreshMiddlewareAdmin)

	admin.POST("/products", d.ProductHandler.CreateProduct)
	admin.PATCH("/products/:id", d.ProductHandler.PatchProduct)
	admin.DELETE("/products/:id", d.ProductHandler.DeleteProduct)
	admin.POST("/products/:id/variants", d.ProductHandler.CreateVariant)
	admin.PATCH("/variants/:variant_id", d.ProductHandler.PatchVariant)
	admin.DELETE("/variants/:variant_id", d.ProductHandler.DeleteVariant)

	admin.POST("/codes", d.AdminHandler.AddInventoryCodes)
	admin.GET("/codes", d.AdminHandler.ListInventoryCodes)

	admin.POST("/promos", d.AdminHandler.CreatePromo)
	admin.GET("/promos", d.AdminHandler.ListPromos)
	admin.PATCH("/promos/:id", d.AdminHandler.PatchPromo)
	admin.DELETE("/promos/:id", d.AdminHandler.DeletePromo)

	admin.GET("/orders", d.AdminHandler.ListOrders)
	admin.GET("/orders/:id", d.AdminHandler.GetOrder)
	admin.PATCH("/orders/:id/status", d.AdminHandler.UpdateOrderStatus)

	admin.GET("/topups", d.AdminHandler.ListTopups)
	admin.POST("/topups/:id/approve", d.AdminHandler.ApproveTopup)
	admin.POST("/topups/:id/reject", d.AdminHandler.RejectTopup)
}
