package http

import (
	"github.com/gin-gonic/gin"

	"volt/internal/interfaces/http/handlers"
)

// RegisterRoutes mounts the full endpoint surface. Registration order
// matters only for pattern routes, which match in the order given here.
func RegisterRoutes(
	r *Router,
	version string,
	auth *handlers.AuthHandler,
	users *handlers.UserHandler,
	payments *handlers.PaymentHandler,
	webhook *handlers.WebhookHandler,
) error {
	system := handlers.NewSystemHandler(version,
		func() string { return r.table.Sitemap(r.server.BaseURL) },
		r.table.Robots,
	)

	public := RouteMeta{RateLimitGroups: []string{"global"}}
	authed := RouteMeta{RequiresAuth: true, RateLimitGroups: []string{"global"}, HideFromRobots: true}
	credential := RouteMeta{RateLimitGroups: []string{"global", "auth"}}

	routes := []struct {
		method, path string
		meta         RouteMeta
		handler      gin.HandlerFunc
	}{
		{"GET", "/health", public, system.Health},
		{"GET", "/version", public, system.Version},
		{"GET", "/sitemap.xml", public, system.Sitemap},
		{"GET", "/robots.txt", public, system.Robots},

		{"GET", "/auth/2fa", credential, auth.Send2FA},
		{"POST", "/auth/signup", credential, auth.SignUp},
		{"POST", "/auth/signin", credential, auth.SignIn},
		{"POST", "/auth/signout", authed, auth.SignOut},
		{"POST", "/auth/activate", credential, auth.Activate},
		{"POST", "/auth/forgot_password", credential, auth.ForgotPassword},

		{"GET", "/user", authed, users.Get},
		{"POST", "/user", authed, users.Update},
		{"DELETE", "/user", authed, users.Delete},
		{"POST", "/user/change_password", authed, users.ChangePassword},
		{"POST", "/user/api_key", authed, users.GenerateAPIKey},
		{"DELETE", "/user/api_key", authed, users.RevokeAPIKey},
		{"GET", "/user/data", authed, users.GetData},
		{"POST", "/user/data", authed, users.SetData},
		{"DELETE", "/user/data", authed, users.DeleteData},
		{"GET", "/user/data/protected", authed, users.GetProtectedData},

		{"GET", "/payments/products", withSitemap(public), payments.Products},
		{"POST", "/payments/init", authed, payments.InitCart},
		{"GET", "/payments/payment", authed, payments.GetPayment},
		{"GET", "/payments/payments", authed, payments.ListPayments},
		{"GET", "/payments/payments/refundable", authed, payments.ListRefundable},
		{"GET", "/payments/payments/refunded", authed, payments.ListRefunded},
		{"GET", "/payments/payments/refunding", authed, payments.ListRefunding},
		{"POST", "/payments/refund", authed, payments.Refund},
		{"DELETE", "/payments/subscription", authed, payments.CancelSubscription},
		{"GET", "/payments/active_subscriptions", authed, payments.ActiveSubscriptions},
		{"GET", "/payments/subscribed", authed, payments.Subscribed},

		{"POST", "/payments/webhook", RouteMeta{HideFromRobots: true}, webhook.Handle},
	}

	for _, rt := range routes {
		if err := r.Handle(rt.method, rt.path, rt.meta, rt.handler); err != nil {
			return err
		}
	}
	return nil
}

func withSitemap(meta RouteMeta) RouteMeta {
	meta.Sitemap = true
	return meta
}
