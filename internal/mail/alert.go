package mail

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"github.com/divinahealthcare/site/internal/logging"
	"github.com/divinahealthcare/site/internal/submit"
)

// SNSAPI is the part of the SNS client the alerter uses.
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

const alertTimeout = 10 * time.Second

// SNSAlerter publishes a notice to a topic whenever a submission cannot be
// delivered, so staff can follow up on the lost lead. It is a
// submit.Observer; publishing happens off the request path.
type SNSAlerter struct {
	client   SNSAPI
	topicARN string
	wg       sync.WaitGroup
}

// NewSNSAlerter creates an alerter for topicARN.
func NewSNSAlerter(client SNSAPI, topicARN string) *SNSAlerter {
	return &SNSAlerter{client: client, topicARN: topicARN}
}

// Observe publishes on every transition into SendFailed.
func (a *SNSAlerter) Observe(ctx context.Context, ev submit.Event) {
	if ev.To != submit.SendFailed {
		return
	}

	msg := fmt.Sprintf("Submission %s (%s) could not be delivered: %v", ev.SubmissionID, ev.Form, ev.Err)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), alertTimeout)
		defer cancel()

		_, err := a.client.Publish(ctx, &sns.PublishInput{
			TopicArn: aws.String(a.topicARN),
			Subject:  aws.String("Website delivery failure"),
			Message:  aws.String(msg),
		})
		if err != nil {
			logging.FromContext(ctx).Warn("failed to publish delivery alert", "error", err)
		}
	}()
}

// Wait blocks until pending alerts are published. Called on shutdown.
func (a *SNSAlerter) Wait() {
	a.wg.Wait()
}
