package api

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"dayplan-cli/internal/model"

	"golang.org/x/sync/errgroup"
)

func userPath(id model.UserID, suffix string) string {
	return "/api/user/" + url.PathEscape(string(id)) + suffix
}

// InitializeUser registers the user with the backend and returns its greeting text.
func (c *Client) InitializeUser(ctx context.Context, id model.UserID) (string, error) {
	return Get[string](ctx, c, "/api/start/"+url.PathEscape(string(id)))
}

func (c *Client) GetUser(ctx context.Context, id model.UserID) (model.User, error) {
	return Get[model.User](ctx, c, userPath(id, ""))
}

func (c *Client) GetUserTasks(ctx context.Context, id model.UserID) ([]model.Task, error) {
	return Get[[]model.Task](ctx, c, userPath(id, "/tasks"))
}

func (c *Client) SubmitTask(ctx context.Context, body model.SubmitTaskBody) (model.SubmitTaskResponse, error) {
	return Post[model.SubmitTaskResponse](ctx, c, "/api/task", body)
}

func (c *Client) SubmitFreeHours(ctx context.Context, body model.FreeHoursBody) error {
	return c.postNoContent(ctx, "/api/free-hours", body)
}

func (c *Client) SubmitResult(ctx context.Context, body model.ResultBody) error {
	return c.postNoContent(ctx, "/api/result", body)
}

func (c *Client) Health(ctx context.Context) (model.Health, error) {
	return Get[model.Health](ctx, c, "/api/health")
}

type Profile struct {
	User  model.User   `json:"user"`
	Tasks []model.Task `json:"tasks"`
}

// Profile fetches the user record and the server-side task list concurrently.
func (c *Client) Profile(ctx context.Context, id model.UserID) (Profile, error) {
	var p Profile
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		u, err := c.GetUser(gctx, id)
		if err != nil {
			return err
		}
		p.User = u
		return nil
	})
	g.Go(func() error {
		tasks, err := c.GetUserTasks(gctx, id)
		if err != nil {
			return err
		}
		p.Tasks = tasks
		return nil
	})
	if err := g.Wait(); err != nil {
		return Profile{}, err
	}
	if p.Tasks == nil {
		p.Tasks = []model.Task{}
	}
	return p, nil
}

// GenerateOrder posts the order request and hands back the raw response so the caller can
// tell an HTTP failure apart from an empty ordering. The caller closes the body.
func (c *Client) GenerateOrder(ctx context.Context, req model.OrderRequest) (*http.Response, error) {
	resp, err := c.do(ctx, http.MethodPost, "/generate-order", req)
	if err != nil {
		var te *TransportError
		if errors.As(err, &te) {
			c.logger.Error("generate-order request did not reach the server",
				"url", te.URL,
				"kind", te.Kind,
				"hint", te.Hint(),
				"err", te.Err,
			)
		} else {
			c.logger.Error("generate-order request failed", "url", c.URL("/generate-order"), "err", err)
		}
		return nil, err
	}
	return resp, nil
}

// DecodeOrder reads a GenerateOrder response. Non-2xx responses become *HTTPError.
func DecodeOrder(resp *http.Response) (model.OrderResponse, error) {
	var out model.OrderResponse
	if resp == nil {
		return out, errors.New("nil response")
	}
	defer resp.Body.Close()
	if err := decode(resp, &out); err != nil {
		return out, err
	}
	return out, nil
}
