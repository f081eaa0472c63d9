package thrippy

import (
	"context"
	"errors"
	"net"
	"reflect"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"

	thrippypb "github.com/tzrikka/thrippy-api/thrippy/v1"
)

type server struct {
	thrippypb.UnimplementedThrippyServiceServer
	link    *thrippypb.GetLinkResponse
	linkErr error
	resp    *thrippypb.GetCredentialsResponse
	err     error
}

func (s *server) GetLink(_ context.Context, _ *thrippypb.GetLinkRequest) (*thrippypb.GetLinkResponse, error) {
	return s.link, s.linkErr
}

func (s *server) GetCredentials(_ context.Context, _ *thrippypb.GetCredentialsRequest) (*thrippypb.GetCredentialsResponse, error) {
	return s.resp, s.err
}

func startServer(t *testing.T, s *server) string {
	t.Helper()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	gs := grpc.NewServer()
	thrippypb.RegisterThrippyServiceServer(gs, s)
	go func() {
		_ = gs.Serve(lis)
	}()
	t.Cleanup(gs.Stop)

	return lis.Addr().String()
}

func TestLinkCredentials(t *testing.T) {
	tests := []struct {
		name    string
		resp    *thrippypb.GetCredentialsResponse
		respErr error
		want    map[string]string
		wantErr bool
	}{
		{
			name: "nil",
			resp: thrippypb.GetCredentialsResponse_builder{}.Build(),
		},
		{
			name:    "grpc_error",
			respErr: errors.New("error"),
			wantErr: true,
		},
		{
			name: "no_secrets",
			resp: thrippypb.GetCredentialsResponse_builder{}.Build(),
		},
		{
			name:    "link_not_found",
			respErr: status.Error(codes.NotFound, "link not found"),
		},
		{
			name: "happy_path",
			resp: thrippypb.GetCredentialsResponse_builder{
				Credentials: map[string]string{"bot_token": "xoxb-111", "signing_secret": "222"},
			}.Build(),
			want: map[string]string{"bot_token": "xoxb-111", "signing_secret": "222"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr := startServer(t, &server{resp: tt.resp, err: tt.respErr})
			conn, err := Connection(addr, insecureCreds())
			if err != nil {
				t.Fatal(err)
			}
			defer conn.Close()

			got, err := linkCredentials(t.Context(), thrippypb.NewThrippyServiceClient(conn), "link ID")
			if (err != nil) != tt.wantErr {
				t.Errorf("linkCredentials() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("linkCredentials() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLinkData(t *testing.T) {
	tests := []struct {
		name         string
		s            *server
		wantTemplate string
		wantCreds    map[string]string
		wantErr      bool
	}{
		{
			name: "link_not_found",
			s:    &server{linkErr: status.Error(codes.NotFound, "link not found")},
		},
		{
			name:    "link_error",
			s:       &server{linkErr: errors.New("error")},
			wantErr: true,
		},
		{
			name: "credentials_error",
			s: &server{
				link: thrippypb.GetLinkResponse_builder{Template: proto.String("slack-bot-token")}.Build(),
				err:  errors.New("error"),
			},
			wantErr: true,
		},
		{
			name: "happy_path",
			s: &server{
				link: thrippypb.GetLinkResponse_builder{Template: proto.String("slack-bot-token")}.Build(),
				resp: thrippypb.GetCredentialsResponse_builder{
					Credentials: map[string]string{"bot_token": "xoxb-111"},
				}.Build(),
			},
			wantTemplate: "slack-bot-token",
			wantCreds:    map[string]string{"bot_token": "xoxb-111"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr := startServer(t, tt.s)

			template, creds, err := LinkData(t.Context(), addr, insecureCreds(), "link ID")
			if (err != nil) != tt.wantErr {
				t.Errorf("LinkData() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if template != tt.wantTemplate {
				t.Errorf("LinkData() template = %q, want %q", template, tt.wantTemplate)
			}
			if !reflect.DeepEqual(creds, tt.wantCreds) {
				t.Errorf("LinkData() credentials = %v, want %v", creds, tt.wantCreds)
			}
		})
	}
}
