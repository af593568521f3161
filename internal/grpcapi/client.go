package grpcapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client calls giftwrap.v1.Availability.
type Client struct {
	cc     grpc.ClientConnInterface
	apiKey string
}

func NewClient(cc grpc.ClientConnInterface, apiKey string) *Client {
	return &Client{cc: cc, apiKey: apiKey}
}

func (c *Client) call(ctx context.Context, method string, in map[string]interface{}) (*structpb.Struct, error) {
	req, err := structpb.NewStruct(in)
	if err != nil {
		return nil, err
	}
	if c.apiKey != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, apiKeyMetadataKey, c.apiKey)
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) AvailableSlots(ctx context.Context, date, workerID string) ([]string, error) {
	out, err := c.call(ctx, "AvailableSlots", map[string]interface{}{"date": date, "worker_id": workerID})
	if err != nil {
		return nil, err
	}
	values := out.GetFields()["slots"].GetListValue().GetValues()
	slots := make([]string, 0, len(values))
	for _, v := range values {
		slots = append(slots, v.GetStringValue())
	}
	return slots, nil
}

func (c *Client) IsDateBookable(ctx context.Context, date, workerID string) (bool, error) {
	out, err := c.call(ctx, "IsDateBookable", map[string]interface{}{"date": date, "worker_id": workerID})
	if err != nil {
		return false, err
	}
	return out.GetFields()["bookable"].GetBoolValue(), nil
}

func (c *Client) MaxItemsForSlot(ctx context.Context, date, at, serviceID, workerID string) (int, error) {
	out, err := c.call(ctx, "MaxItemsForSlot", map[string]interface{}{
		"date": date, "time": at, "service_id": serviceID, "worker_id": workerID,
	})
	if err != nil {
		return 0, err
	}
	return int(out.GetFields()["max_items"].GetNumberValue()), nil
}
