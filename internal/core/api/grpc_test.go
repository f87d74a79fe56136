package api

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/solatis/surveylogic/internal/types"
)

func newBufconnClient(t *testing.T, svc *VisibilityService, opts ...grpc.ServerOption) *VisibilityClient {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	server := grpc.NewServer(opts...)
	RegisterVisibilityServer(server, svc)
	go server.Serve(lis)
	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return NewVisibilityClient(conn)
}

func TestGRPC_EvaluatePage(t *testing.T) {
	client := newBufconnClient(t, newTestService(t, newTestSource()))

	resp, err := client.EvaluatePage(context.Background(), &EvaluatePageRequest{
		SurveyID: "s1",
		PageID:   "p1",
		Answers: types.AnswerStore{Answers: map[types.QuestionID]types.AnswerValue{
			"age": types.Number(16),
		}},
	})
	require.NoError(t, err)
	assert.False(t, resp.Visibility.QuestionVisible("drinks"))
}

func TestGRPC_StatusCodes(t *testing.T) {
	client := newBufconnClient(t, newTestService(t, newTestSource()))
	ctx := context.Background()

	_, err := client.EvaluatePage(ctx, &EvaluatePageRequest{SurveyID: "nope", PageID: "p1"})
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = client.EvaluatePage(ctx, &EvaluatePageRequest{SurveyID: "s1"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestGRPC_ValidateRules(t *testing.T) {
	client := newBufconnClient(t, newTestService(t, newTestSource()))

	resp, err := client.ValidateRules(context.Background(), &ValidateRulesRequest{SurveyID: "s1"})
	require.NoError(t, err)
	assert.True(t, resp.Valid)
	assert.Equal(t, 2, resp.Checked)
}

func TestGRPC_InterceptorSeesMethod(t *testing.T) {
	var seen string
	record := func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		seen = info.FullMethod
		return handler(ctx, req)
	}
	metrics := NewMetrics()
	client := newBufconnClient(t, newTestService(t, newTestSource()),
		grpc.ChainUnaryInterceptor(record, metrics.UnaryInterceptor()))

	_, err := client.ValidateRules(context.Background(), &ValidateRulesRequest{SurveyID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, ValidateRulesMethod, seen)
}
