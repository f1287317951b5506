package composer

import (
	"context"
	"errors"

	"github.com/hitoshi/socialhub/internal/api"
	"github.com/hitoshi/socialhub/internal/rpc"
)

// RPCSubmitter は posts.create を呼び出すSubmitter。
type RPCSubmitter struct {
	Client *rpc.Client
}

// Submit は投稿を作成する。結果の投稿は使わない。
func (s RPCSubmitter) Submit(ctx context.Context, input api.CreatePostInput) error {
	return s.Client.Mutation(ctx, api.ProcPostsCreate, input, nil)
}

// errorMessage はトーストに表示する文言を返す。
func errorMessage(err error) string {
	var rpcErr *rpc.Error
	if errors.As(err, &rpcErr) {
		if rpcErr.Code == rpc.CodeNetworkError {
			return "Could not reach the server. Please try again."
		}
		if rpcErr.Message != "" {
			return rpcErr.Message
		}
	}
	return "Failed to create the post. Please try again."
}
