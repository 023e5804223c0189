package commerce

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"

	errx "github.com/chative-commerce/storefront-agent/internal/core/error"
	"github.com/chative-commerce/storefront-agent/pkg/retry"
)

type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type gqlError struct {
	Message    string `json:"message"`
	Extensions struct {
		Code string `json:"code"`
	} `json:"extensions"`
}

type gqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []gqlError      `json:"errors"`
}

// GraphQLError is a request the API answered with top-level errors.
type GraphQLError struct {
	Service  string
	Messages []string
}

func (e *GraphQLError) Error() string {
	return fmt.Sprintf("%s: graphql: %s", e.Service, strings.Join(e.Messages, "; "))
}

type userError struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
}

// UserError is a mutation rejected for its input, e.g. an unknown variant.
type UserError struct {
	Messages []string
}

func (e *UserError) Error() string {
	return strings.Join(e.Messages, "; ")
}

func userErrorsErr(errs []userError) error {
	if len(errs) == 0 {
		return nil
	}
	msgs := make([]string, 0, len(errs))
	for _, ue := range errs {
		if len(ue.Field) > 0 {
			msgs = append(msgs, fmt.Sprintf("%s: %s", strings.Join(ue.Field, "."), ue.Message))
		} else {
			msgs = append(msgs, ue.Message)
		}
	}
	return errx.Public(&UserError{Messages: msgs}, strings.Join(msgs, "; "))
}

// graphqlClient posts operations to one GraphQL endpoint.
type graphqlClient struct {
	http     *resty.Client
	service  string
	endpoint string
	header   string
	token    string
	policy   retry.Policy
}

// do runs one operation and decodes its data into out. Throttling, either as
// HTTP 429 or as a THROTTLED GraphQL error, is retried under the policy.
func (c *graphqlClient) do(ctx context.Context, operation, query string, vars map[string]any, out any) error {
	data, err := retry.Do(ctx, c.policy, c.service+"."+operation, func(ctx context.Context) (json.RawMessage, error) {
		return c.post(ctx, query, vars)
	})
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: decode %s: %w", c.service, operation, err)
	}
	return nil
}

func (c *graphqlClient) post(ctx context.Context, query string, vars map[string]any) (json.RawMessage, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader(c.header, c.token).
		SetBody(gqlRequest{Query: query, Variables: vars}).
		Post(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", c.service, err)
	}
	if resp.IsError() {
		return nil, errx.NewUpstream(c.service, resp.StatusCode(), resp.String(), resp.Header().Get("Retry-After"))
	}

	var env gqlResponse
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return nil, fmt.Errorf("%s: decode response: %w", c.service, err)
	}
	if len(env.Errors) > 0 {
		msgs := make([]string, 0, len(env.Errors))
		for _, e := range env.Errors {
			if e.Extensions.Code == "THROTTLED" {
				return nil, errx.NewUpstream(c.service, http.StatusTooManyRequests, e.Message, "")
			}
			msgs = append(msgs, e.Message)
		}
		return nil, &GraphQLError{Service: c.service, Messages: msgs}
	}
	return env.Data, nil
}
