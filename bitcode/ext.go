package bitcode

import (
	"encoding/json"
	"strconv"

	"github.com/caffeineduck/jpcguest/jpc"
)

// Callback announces the response status, content type and body size to the
// host before the body is streamed.
func (c *Context) Callback(status int, contentType string, size int) jpc.Result {
	doc := map[string]any{
		"http": map[string]any{
			"status": status,
			"headers": map[string][]string{
				"Content-Type":   {contentType},
				"Content-Length": {strconv.Itoa(size)},
			},
		},
	}
	return c.Call("Callback", doc, BindingCtx)
}

// JSONCallback sends doc to the host callback as is.
func (c *Context) JSONCallback(doc any) jpc.Result {
	return c.Call("Callback", doc, BindingCtx)
}

// ProxyHttp asks the host to perform the HTTP request described by req.
// Host errors are reported as a local "failed to call proxy" error.
func (c *Context) ProxyHttp(req any) jpc.Result {
	r := c.Call("ProxyHttp", req, BindingExt)
	if r.IsError() {
		return jpc.FromError(jpc.Wrap("ProxyHttp", r.Err, jpc.FieldDesc, "failed to call proxy"))
	}
	return r
}

// RestCall asks the host to perform a REST request described by req.
func (c *Context) RestCall(req any) jpc.Result {
	return c.Call("RestCall", req, BindingExt)
}

// FFMPEGRun runs ffmpeg on the host with the given arguments.
func (c *Context) FFMPEGRun(args []string) jpc.Result {
	if args == nil {
		args = []string{}
	}
	return c.Call("FFMPEGRun", map[string][]string{"stream_params": args}, BindingExt)
}

// StartLRO starts function of module as a long running operation.
func (c *Context) StartLRO(module, function string, args any) jpc.Result {
	return c.Call("StartBitcodeLRO", map[string]any{
		"module":   module,
		"function": function,
		"args":     args,
	}, BindingLRO)
}

// Query returns the query parameters of the request.
func (c *Context) Query() map[string]string {
	return QueryParams(c.req.Params)
}

// QueryParams extracts params.http.query as a flat map. Array values keep
// only their first element. A missing or null query yields an empty map.
func QueryParams(params json.RawMessage) map[string]string {
	out := make(map[string]string)
	var doc struct {
		HTTP struct {
			Query map[string]json.RawMessage `json:"query"`
		} `json:"http"`
	}
	if err := json.Unmarshal(params, &doc); err != nil {
		return out
	}
	for k, v := range doc.HTTP.Query {
		out[k] = queryValue(v)
	}
	return out
}

func queryValue(v json.RawMessage) string {
	var arr []json.RawMessage
	if err := json.Unmarshal(v, &arr); err == nil && arr != nil {
		if len(arr) == 0 {
			return ""
		}
		return queryValue(arr[0])
	}
	var s *string
	if err := json.Unmarshal(v, &s); err == nil {
		if s == nil {
			return ""
		}
		return *s
	}
	return string(v)
}
