package thrippy

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"

	thrippypb "github.com/tzrikka/thrippy-api/thrippy/v1"
)

const (
	timeout = 3 * time.Second
)

// Connection creates a gRPC client connection to the given Thrippy server address.
// It supports both secure and insecure connections, based on the given credentials.
func Connection(addr string, creds credentials.TransportCredentials) (*grpc.ClientConn, error) {
	return grpc.NewClient(addr, grpc.WithTransportCredentials(creds))
}

// LinkData returns the template name and saved credentials of a given Thrippy link,
// e.g. the tokens and signing secret of a Slack app. This function reports
// gRPC errors, but if the link is not found it returns nothing.
func LinkData(ctx context.Context, grpcAddr string, creds credentials.TransportCredentials, linkID string) (string, map[string]string, error) {
	l := zerolog.Ctx(ctx)

	conn, err := Connection(grpcAddr, creds)
	if err != nil {
		l.Error().Stack().Err(err).Send()
		return "", nil, err
	}
	defer conn.Close()

	c := thrippypb.NewThrippyServiceClient(conn)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// Template.
	resp1, err := c.GetLink(ctx, thrippypb.GetLinkRequest_builder{
		LinkId: proto.String(linkID),
	}.Build())
	if err != nil {
		if status.Code(err) != codes.NotFound {
			l.Error().Stack().Err(err).Send()
			return "", nil, err
		}
		return "", nil, nil
	}

	// Credentials.
	m, err := linkCredentials(ctx, c, linkID)
	if err != nil {
		l.Error().Stack().Err(err).Send()
		return "", nil, err
	}

	return resp1.GetTemplate(), m, nil
}

// linkCredentials returns the saved credentials of a given Thrippy link.
// It reports gRPC errors, but if the link is not found it returns a nil map.
func linkCredentials(ctx context.Context, c thrippypb.ThrippyServiceClient, linkID string) (map[string]string, error) {
	resp, err := c.GetCredentials(ctx, thrippypb.GetCredentialsRequest_builder{
		LinkId: proto.String(linkID),
	}.Build())
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, err
	}

	return resp.GetCredentials(), nil
}
