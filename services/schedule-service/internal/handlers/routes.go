package handlers

import (
	"net/http"

	"github.com/md-rashed-zaman/workhours/libs/httpx"
)

// Routes groups the handlers mounted on the service mux.
type Routes struct {
	Auth     *AuthHandler
	Operator *OperatorHandler
	Public   *PublicHandler
	// BookLimit throttles booking attempts per client. Nil disables it.
	BookLimit httpx.Middleware
	Secret    string
}

func (rt Routes) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/auth/operator/login", rt.Auth.Login)

	op := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, requireOperator(fn, rt.Secret))
	}
	op("GET /api/v1/operator/days", rt.Operator.Days)
	op("POST /api/v1/operator/days/click", rt.Operator.ClickDay)
	op("GET /api/v1/operator/times", rt.Operator.Times)
	op("POST /api/v1/operator/times/click", rt.Operator.ClickTime)
	op("POST /api/v1/operator/schedule/save", rt.Operator.Save)
	op("POST /api/v1/operator/schedule/reset", rt.Operator.Reset)
	op("POST /api/v1/operator/services", rt.Operator.CreateService)
	op("GET /api/v1/operator/appointments", rt.Operator.Appointments)

	mux.HandleFunc("GET /api/v1/public/services", rt.Public.Services)
	mux.HandleFunc("GET /api/v1/public/availability", rt.Public.Availability)
	var book http.Handler = http.HandlerFunc(rt.Public.Book)
	if rt.BookLimit != nil {
		book = rt.BookLimit(book)
	}
	mux.Handle("POST /api/v1/public/book", book)
}
