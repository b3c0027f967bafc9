package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Client is a typed ImageService client.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps an established connection.
func NewClient(cc grpc.ClientConnInterface) *Client { return &Client{cc: cc} }

// DialOptions returns the options for a plaintext connection, attaching
// token as a bearer credential when non-empty.
func DialOptions(token string) []grpc.DialOption {
	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(MaxMessageSize),
			grpc.MaxCallSendMsgSize(MaxMessageSize),
		),
	}
	if token != "" {
		opts = append(opts, grpc.WithPerRPCCredentials(bearer(token)))
	}
	return opts
}

type bearer string

func (b bearer) GetRequestMetadata(_ context.Context, _ ...string) (map[string]string, error) {
	return map[string]string{"authorization": "Bearer " + string(b)}, nil
}

func (b bearer) RequireTransportSecurity() bool { return false }

func (c *Client) invoke(ctx context.Context, name string, in, out any) error {
	return c.cc.Invoke(ctx, method(name), in, out, grpc.CallContentSubtype(CodecName))
}

func (c *Client) List(ctx context.Context) ([]Image, error) {
	out := new(ListResponse)
	if err := c.invoke(ctx, "List", &Empty{}, out); err != nil {
		return nil, err
	}
	return out.Images, nil
}

func (c *Client) Delete(ctx context.Context, id string) error {
	return c.invoke(ctx, "Delete", &DeleteRequest{ID: id}, new(Empty))
}

func (c *Client) Save(ctx context.Context, data []byte) (*SaveResponse, error) {
	out := new(SaveResponse)
	if err := c.invoke(ctx, "Save", &SaveRequest{Data: data}, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Cleanup(ctx context.Context, hours int64) (int, error) {
	out := new(CleanupResponse)
	if err := c.invoke(ctx, "Cleanup", &CleanupRequest{Hours: hours}, out); err != nil {
		return 0, err
	}
	return out.Removed, nil
}

func (c *Client) Clear(ctx context.Context) error {
	return c.invoke(ctx, "Clear", &Empty{}, new(Empty))
}

func (c *Client) ResetHash(ctx context.Context) error {
	return c.invoke(ctx, "ResetHash", &Empty{}, new(Empty))
}

func (c *Client) ReadFile(ctx context.Context, path string) ([]byte, error) {
	out := new(ReadFileResponse)
	if err := c.invoke(ctx, "ReadFile", &FileRequest{Path: path}, out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

func (c *Client) CopyFile(ctx context.Context, path string) error {
	return c.invoke(ctx, "CopyFile", &FileRequest{Path: path}, new(Empty))
}

func (c *Client) SetOCR(ctx context.Context, id, text string) (Image, error) {
	out := new(ImageResponse)
	if err := c.invoke(ctx, "SetOCR", &SetOCRRequest{ID: id, Text: text}, out); err != nil {
		return Image{}, err
	}
	return out.Image, nil
}

func (c *Client) Status(ctx context.Context) (*StatusResponse, error) {
	out := new(StatusResponse)
	if err := c.invoke(ctx, "Status", &Empty{}, out); err != nil {
		return nil, err
	}
	return out, nil
}

// WatchClient receives events from a Watch stream.
type WatchClient struct {
	stream grpc.ClientStream
}

// Watch opens the event stream. It ends when ctx is cancelled.
func (c *Client) Watch(ctx context.Context) (*WatchClient, error) {
	stream, err := c.cc.NewStream(ctx, &serviceDesc.Streams[0], method("Watch"), grpc.CallContentSubtype(CodecName))
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(&Empty{}); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &WatchClient{stream: stream}, nil
}

// Recv blocks for the next event.
func (w *WatchClient) Recv() (*Event, error) {
	ev := new(Event)
	if err := w.stream.RecvMsg(ev); err != nil {
		return nil, err
	}
	return ev, nil
}
