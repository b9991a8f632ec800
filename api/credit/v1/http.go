package v1

import (
	"context"

	"github.com/go-kratos/kratos/v2/transport/http"
)

const (
	OperationCreditCheckCredits  = "/credit.v1.Credit/CheckCredits"
	OperationCreditDeductCredits = "/credit.v1.Credit/DeductCredits"
	OperationCreditAddCredits    = "/credit.v1.Credit/AddCredits"

	// AccountOperationPrefix selects the end-user operations guarded by the session JWT.
	AccountOperationPrefix = "/credit.v1.Account/"

	OperationAccountGetUsage            = AccountOperationPrefix + "GetUsage"
	OperationAccountListTransactions    = AccountOperationPrefix + "ListTransactions"
	OperationAccountSyncCustomer        = AccountOperationPrefix + "SyncCustomer"
	OperationAccountCreateCheckout      = AccountOperationPrefix + "CreateCheckout"
	OperationAccountCreatePortalSession = AccountOperationPrefix + "CreatePortalSession"

	OperationWebhookDodo = "/credit.v1.Webhook/Dodo"
)

// CreditHTTPServer is the internal usage gate called by the AI gateway.
type CreditHTTPServer interface {
	CheckCredits(context.Context, *CheckCreditsRequest) (*CheckCreditsReply, error)
	DeductCredits(context.Context, *DeductCreditsRequest) (*DeductCreditsReply, error)
	AddCredits(context.Context, *AddCreditsRequest) (*AddCreditsReply, error)
}

// AccountHTTPServer is the signed-in user's API.
type AccountHTTPServer interface {
	GetUsage(context.Context, *GetUsageRequest) (*GetUsageReply, error)
	ListTransactions(context.Context, *ListTransactionsRequest) (*ListTransactionsReply, error)
	SyncCustomer(context.Context, *SyncCustomerRequest) (*SyncCustomerReply, error)
	CreateCheckout(context.Context, *CreateCheckoutRequest) (*CreateCheckoutReply, error)
	CreatePortalSession(context.Context, *CreatePortalSessionRequest) (*CreatePortalSessionReply, error)
}

func RegisterCreditHTTPServer(s *http.Server, srv CreditHTTPServer) {
	r := s.Route("/")
	r.POST("/internal/v1/credits/check", bodyHandler(OperationCreditCheckCredits, srv.CheckCredits))
	r.POST("/internal/v1/credits/deduct", bodyHandler(OperationCreditDeductCredits, srv.DeductCredits))
	r.POST("/internal/v1/credits/add", bodyHandler(OperationCreditAddCredits, srv.AddCredits))
}

func RegisterAccountHTTPServer(s *http.Server, srv AccountHTTPServer) {
	r := s.Route("/")
	r.GET("/v1/usage", queryHandler(OperationAccountGetUsage, srv.GetUsage))
	r.GET("/v1/transactions", queryHandler(OperationAccountListTransactions, srv.ListTransactions))
	r.POST("/v1/customers/sync", bodyHandler(OperationAccountSyncCustomer, srv.SyncCustomer))
	r.POST("/v1/checkout", bodyHandler(OperationAccountCreateCheckout, srv.CreateCheckout))
	r.POST("/v1/portal", bodyHandler(OperationAccountCreatePortalSession, srv.CreatePortalSession))
}

func bodyHandler[Req, Reply any](operation string, call func(context.Context, *Req) (*Reply, error)) http.HandlerFunc {
	return handler(operation, call, func(ctx http.Context, in *Req) error { return ctx.Bind(in) })
}

func queryHandler[Req, Reply any](operation string, call func(context.Context, *Req) (*Reply, error)) http.HandlerFunc {
	return handler(operation, call, func(ctx http.Context, in *Req) error { return ctx.BindQuery(in) })
}

func handler[Req, Reply any](operation string, call func(context.Context, *Req) (*Reply, error), bind func(http.Context, *Req) error) http.HandlerFunc {
	return func(ctx http.Context) error {
		var in Req
		if err := bind(ctx, &in); err != nil {
			return err
		}
		http.SetOperation(ctx, operation)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(ctx, req.(*Req))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, out.(*Reply))
	}
}
