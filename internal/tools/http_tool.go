package tools

import (
	"context"
	"errors"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/probegate/probegate/internal/httpexec"
	"github.com/probegate/probegate/internal/params"
	"github.com/probegate/probegate/internal/pipeline"
)

type httpResult struct {
	Response *httpexec.Response `json:"response"`
	Logging  pipeline.Result    `json:"logging"`
}

func (g *Gateway) handleHTTPRequest(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	raw, err := decodeArgs(req)
	if err != nil {
		return failKind(KindValidationFailed, err.Error()), nil
	}
	a := params.Parse(raw)
	method := a.String("method", "GET")
	rawURL := a.RequiredString("url")
	headers := a.StringMap("headers")
	queryParams := a.StringMap("query_params")
	body := a.String("body", "")
	cookieArgs := a.StringMap("cookies")
	cookieProfile := a.String("cookie_profile", "")
	auth := a.AnyMap("auth")
	timeoutSecs := a.Float("timeout", 0)
	followRedirects := a.BoolPtr("follow_redirects")
	verifyTLS := a.BoolPtr("verify_tls")
	tags := a.StringSlice("tags")
	missionID := a.String("mission_id", "")
	if err := a.Err(); err != nil {
		return failErr(err), nil
	}

	session := g.sessionContext(req)
	missionID, _, ambient := session.Resolve(missionID, "")
	note := ""
	if ambient {
		note = ambientNote
	}
	// The mission's pinned cookie profile applies when the call names
	// none of its own.
	cookieProfile, ambientProfile := session.ResolveCookieProfile(cookieProfile)
	if ambientProfile && note == "" {
		note = ambientNote
	}

	// Cookie merge precedence: profile values lose to explicit cookies,
	// which lose to an explicit Cookie header inside the executor.
	merged := map[string]string{}
	if cookieProfile != "" {
		profileCookies, err := g.cookies.Get(ctx, cookieProfile)
		if err != nil {
			// Profile problems abort before anything is sent.
			return failErr(err), nil
		}
		for k, v := range profileCookies {
			merged[k] = v
		}
	}
	for k, v := range cookieArgs {
		merged[k] = v
	}

	execReq := httpexec.Request{
		Method:          method,
		URL:             rawURL,
		Headers:         headers,
		QueryParams:     queryParams,
		Body:            body,
		Cookies:         merged,
		Timeout:         time.Duration(timeoutSecs * float64(time.Second)),
		FollowRedirects: followRedirects,
		VerifyTLS:       verifyTLS,
	}
	if auth != nil {
		switch auth["type"] {
		case "basic":
			execReq.BasicAuthUser, _ = auth["username"].(string)
			execReq.BasicAuthPass, _ = auth["password"].(string)
		case "bearer":
			execReq.BearerToken, _ = auth["token"].(string)
		default:
			return failKind(KindValidationFailed, "auth.type must be basic or bearer"), nil
		}
	}

	resp, execErr := g.exec.Do(ctx, execReq)

	// Validation failures never left the process, so there is nothing
	// to record. Transport failures and successes both get logged.
	var vErr httpexec.ValidationError
	if execErr != nil && errors.As(execErr, &vErr) {
		return failErr(execErr), nil
	}

	ex := pipeline.Exchange{
		Method:         method,
		URL:            rawURL,
		RequestHeaders: headers,
		RequestCookies: merged,
		RequestBody:    body,
		MissionID:      missionID,
		Tags:           tags,
		Response:       resp,
	}
	if execErr != nil {
		ex.ErrMsg = execErr.Error()
	}
	logRes := g.pipe.Record(ctx, ex)

	if execErr != nil {
		env := Envelope{OK: false, Error: classify(execErr), MissionContextNote: note}
		env.Error.Fields = map[string]string{"request_id": logRes.RequestID}
		return respond(env), nil
	}
	return respond(Envelope{
		OK:                 true,
		Result:             httpResult{Response: resp, Logging: logRes},
		MissionContextNote: note,
	}), nil
}
