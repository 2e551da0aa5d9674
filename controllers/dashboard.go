package controllers

import (
	"net/http"

	"SellerHub/pkg/app"
	"SellerHub/pkg/services"
	utils "SellerHub/pkg/utills"

	"github.com/gin-gonic/gin"
)

func DashboardStats(a *app.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		st, err := a.Dashboard.Stats(c.Request.Context(), utils.Truthy(c.Query("refresh")))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, st)
	}
}

// ListOrders: ?platform=&status=&search=&sort=&page=&per_page=&refresh=
func ListOrders(a *app.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := a.Dashboard.Orders(c.Request.Context(), services.OrderQuery{
			Platform: c.Query("platform"),
			Status:   c.Query("status"),
			Search:   c.Query("search"),
			Sort:     c.Query("sort"),
			Page:     utils.IntOr(c.Query("page"), 1),
			PerPage:  utils.IntOr(c.Query("per_page"), 20),
			Refresh:  utils.Truthy(c.Query("refresh")),
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

func GetOrder(a *app.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		o, err := a.Dashboard.GetOrder(c.Request.Context(), c.Param("platform"), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, o)
	}
}

func ListCustomers(a *app.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := a.Dashboard.Customers(c.Request.Context(), services.CustomerQuery{
			Platform: c.Query("platform"),
			Search:   c.Query("search"),
			Page:     utils.IntOr(c.Query("page"), 1),
			PerPage:  utils.IntOr(c.Query("per_page"), 20),
			Refresh:  utils.Truthy(c.Query("refresh")),
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

func ListProducts(a *app.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, err := a.Dashboard.Products(c.Request.Context(), services.ProductQuery{
			Search:      c.Query("search"),
			StockStatus: c.Query("stock_status"),
			Page:        utils.IntOr(c.Query("page"), 1),
			PerPage:     utils.IntOr(c.Query("per_page"), 20),
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, page)
	}
}
