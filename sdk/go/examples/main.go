package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	"IntentChain/sdk/go/intentchain"
)

func main() {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/messages", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(intentchain.MessageResponse{
			SessionID: "sess-demo",
			Reply: &intentchain.Reply{
				Kind:    "argument_request",
				Message: "还需要补充以下信息: 收款账户",
				Request: &intentchain.ArgumentRequest{
					Prompt: "还需要补充以下信息: 收款账户",
					Fields: []intentchain.MissingField{{
						Name:  "recipient",
						Label: "收款账户",
						Hint:  "choice",
						Rule:  "address",
					}},
					Round: 1,
				},
			},
		})
	})
	mux.HandleFunc("/api/v1/messages/respond", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(intentchain.MessageResponse{
			SessionID: "sess-demo",
			Reply: &intentchain.Reply{
				Kind:    "action_complete",
				Message: "操作已完成",
				Outcome: &intentchain.Outcome{
					Status:        "success",
					TransactionID: "0.0.1001@169.5",
					ReceiptStatus: "SUCCESS",
				},
			},
		})
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	client, err := intentchain.NewClient(srv.URL, srv.Client())
	if err != nil {
		panic(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := client.SendMessage(ctx, "", "demo-user", "send 50 hbar to alice")
	if err != nil {
		panic(err)
	}
	fmt.Printf("reply kind=%s prompt=%q\n", resp.Reply.Kind, resp.Reply.Message)

	final, err := client.Respond(ctx, resp.SessionID, map[string]string{"recipient": "alice"})
	if err != nil {
		panic(err)
	}
	fmt.Printf("outcome status=%s tx=%s\n", final.Reply.Outcome.Status, final.Reply.Outcome.TransactionID)
}
