// Package http provides small request and response helpers for handlers
// mounted on the chi router.
//
//	req := gohttp.NewRequest(r)
//	abstract := req.RouteParam("abstract")
//
//	res := gohttp.NewResponse(w)
//	res.Success(data)             // 200 {"data": ...}
//	res.NotFound()                // 404 {"message": "Not found."}
//	res.Error(400, "bad input")   // {"message": "bad input"}
package http
