package runtime

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/BDNK1/sfnsim/runtime/engine/jsonpath"
	"github.com/BDNK1/sfnsim/runtime/states"
)

// integration serves one service integration ARN. It returns the resource it
// reached so a .waitForTaskToken call can ask that resource for its callback.
type integration func(x *Executor, e *Execution, input any) (Resource, any, error)

var integrations = map[string]integration{
	"arn:aws:states:::lambda:invoke":                (*Executor).invokeLambda,
	"arn:aws:states:::aws-sdk:s3:getObject":         (*Executor).getObject,
	"arn:aws:states:::aws-sdk:s3:putObject":         (*Executor).putObject,
	"arn:aws:states:::s3:putObject":                 (*Executor).putObject,
	"arn:aws:states:::sns:publish":                  (*Executor).publish,
	"arn:aws:states:::sqs:sendMessage":              (*Executor).sendMessage,
	"arn:aws:states:::states:startExecution":        (*Executor).startExecution,
	"arn:aws:states:::states:startExecution.sync":   (*Executor).startExecutionSync,
	"arn:aws:states:::states:startExecution.sync:2": (*Executor).startExecutionSyncObject,
	"arn:aws:states:::http:invoke":                  (*Executor).invokeHTTP,
}

// task runs a Task state: effective input, resource call, optional task
// token callback and output processing.
func (x *Executor) task(e *Execution, s *State, flow DataFlow, raw any) (any, error) {
	arn, waitForToken := strings.CutSuffix(s.Resource, waitForTokenSuffix)
	if waitForToken {
		e.Vars.Context.Task = &TaskContext{Token: x.opts.NewToken()}
	}

	effective, err := flow.Input(e, s, raw)
	if err != nil {
		return nil, err
	}

	result, err := x.callResource(e, s.Resource, arn, effective, waitForToken)
	if err != nil {
		return nil, err
	}
	return flow.Output(e, s, raw, effective, flow.TaskResult(arn, result), true)
}

func (x *Executor) callResource(e *Execution, resource, arn string, input any, waitForToken bool) (any, error) {
	start := time.Now()
	x.hooks.taskCall(e, &TaskEvent{
		EventBase: x.eventBase(e),
		StateName: e.Vars.Context.State.Name,
		Resource:  resource,
		Input:     input,
	})
	x.l.InfoContext(e, fmt.Sprintf("Invoking resource %s", resource))

	result, err := x.route(e, arn, input, waitForToken)

	x.hooks.taskReturn(e, &TaskEvent{
		EventBase: x.eventBase(e),
		StateName: e.Vars.Context.State.Name,
		Resource:  resource,
		Input:     input,
		Output:    result,
		IsError:   err != nil,
		Duration:  time.Since(start),
	})
	if err != nil {
		x.l.ErrorContext(e, fmt.Sprintf("Resource %s failed", resource), "error", err)
		return nil, err
	}
	return result, nil
}

func (x *Executor) route(e *Execution, arn string, input any, waitForToken bool) (any, error) {
	var (
		target Resource
		result any
		err    error
	)

	switch {
	case isLambdaFunctionARN(arn):
		target, result, err = x.invokeFunction(e, lambdaFunctionName(arn), input)
	default:
		call, ok := integrations[arn]
		if !ok {
			return nil, states.NewSimulatorError("Unsupported resource [%s]", arn)
		}
		target, result, err = call(x, e, input)
	}
	if err != nil {
		return nil, resourceError(err)
	}
	if !waitForToken {
		return normalize(result)
	}

	callbacker, ok := target.(TaskCallbacker)
	if !ok {
		return nil, states.NewSimulatorError("Resource [%s] does not support .waitForTaskToken", arn)
	}
	result, err = callbacker.TaskCallback(e, input, result)
	if err != nil {
		return nil, resourceError(err)
	}
	return normalize(result)
}

func normalize(v any) (any, error) {
	out, err := jsonpath.Normalize(v)
	if err != nil {
		return nil, states.NewTaskFailed("%v", err)
	}
	return out, nil
}

func (x *Executor) lookup(service, name, notFound string) (Resource, error) {
	r, ok := x.container.Lookup(service, name)
	if !ok {
		return nil, states.NewTaskFailed(notFound, name)
	}
	return r, nil
}

func (x *Executor) invokeFunction(e *Execution, name string, input any) (Resource, any, error) {
	r, err := x.lookup(ServiceLambda, name, "Lambda function [%s] not found")
	if err != nil {
		return nil, nil, err
	}
	invoker, ok := r.(Invoker)
	if !ok {
		return r, nil, states.NewTaskFailed("Lambda function [%s] cannot be invoked", name)
	}
	result, err := invoker.Invoke(e, "invoke", input)
	return r, result, err
}

type lambdaInvokeInput struct {
	FunctionName string `json:"FunctionName" validate:"required"`
	Payload      any    `json:"Payload"`
}

func (x *Executor) invokeLambda(e *Execution, input any) (Resource, any, error) {
	in, err := decodeInput[lambdaInvokeInput](input, "lambda:invoke")
	if err != nil {
		return nil, nil, err
	}
	r, result, err := x.invokeFunction(e, lambdaFunctionName(in.FunctionName), in.Payload)
	if err != nil {
		return r, nil, err
	}
	return r, map[string]any{
		"Payload":         result,
		"StatusCode":      200,
		"ExecutedVersion": "$LATEST",
	}, nil
}

func (x *Executor) bucket(name string) (*Bucket, error) {
	r, err := x.lookup(ServiceS3, name, "Bucket [%s] not found")
	if err != nil {
		return nil, err
	}
	b, ok := r.(*Bucket)
	if !ok || b.Objects == nil {
		return nil, states.NewTaskFailed("Bucket [%s] has no object store", name)
	}
	return b, nil
}

type getObjectInput struct {
	Bucket string `json:"Bucket" validate:"required"`
	Key    string `json:"Key" validate:"required"`
}

func (x *Executor) getObject(e *Execution, input any) (Resource, any, error) {
	in, err := decodeInput[getObjectInput](input, "s3:getObject")
	if err != nil {
		return nil, nil, err
	}
	b, err := x.bucket(in.Bucket)
	if err != nil {
		return nil, nil, err
	}
	body, found, err := b.Objects.GetObject(e, in.Key)
	if err != nil {
		return b, nil, err
	}
	if !found {
		return b, nil, states.NewTaskFailed("No object in bucket [%s] with key [%s]", in.Bucket, in.Key)
	}
	return b, map[string]any{"Body": body}, nil
}

type putObjectInput struct {
	Bucket string `json:"Bucket" validate:"required"`
	Key    string `json:"Key" validate:"required"`
	Body   any    `json:"Body"`
}

func (x *Executor) putObject(e *Execution, input any) (Resource, any, error) {
	in, err := decodeInput[putObjectInput](input, "s3:putObject")
	if err != nil {
		return nil, nil, err
	}
	b, err := x.bucket(in.Bucket)
	if err != nil {
		return nil, nil, err
	}
	body, err := encodeBody(in.Body)
	if err != nil {
		return b, nil, err
	}
	if err := b.Objects.PutObject(e, in.Key, body); err != nil {
		return b, nil, err
	}
	return b, map[string]any{"ETag": fmt.Sprintf("%q", md5Hex(body))}, nil
}

type publishInput struct {
	TopicArn string `json:"TopicArn" validate:"required"`
	Message  any    `json:"Message" validate:"required"`
}

func (x *Executor) publish(e *Execution, input any) (Resource, any, error) {
	in, err := decodeInput[publishInput](input, "sns:publish")
	if err != nil {
		return nil, nil, err
	}
	name := lastSegment(in.TopicArn, ":")
	r, err := x.lookup(ServiceSNS, name, "Topic [%s] not found")
	if err != nil {
		return nil, nil, err
	}
	topic, ok := r.(*Topic)
	if !ok || topic.Messages == nil {
		return r, nil, states.NewTaskFailed("Topic [%s] has no message sink", name)
	}
	message, err := encodeBody(in.Message)
	if err != nil {
		return r, nil, err
	}
	if err := topic.Messages.Send(e, message); err != nil {
		return r, nil, err
	}
	return r, map[string]any{"MessageId": x.opts.NewToken()}, nil
}

type sendMessageInput struct {
	QueueUrl    string `json:"QueueUrl" validate:"required"`
	MessageBody any    `json:"MessageBody" validate:"required"`
}

func (x *Executor) sendMessage(e *Execution, input any) (Resource, any, error) {
	in, err := decodeInput[sendMessageInput](input, "sqs:sendMessage")
	if err != nil {
		return nil, nil, err
	}
	name := lastSegment(in.QueueUrl, "/")
	r, err := x.lookup(ServiceSQS, name, "Queue [%s] not found")
	if err != nil {
		return nil, nil, err
	}
	queue, ok := r.(*Queue)
	if !ok || queue.Messages == nil {
		return r, nil, states.NewTaskFailed("Queue [%s] has no message sink", name)
	}
	body, err := encodeBody(in.MessageBody)
	if err != nil {
		return r, nil, err
	}
	if err := queue.Messages.Send(e, body); err != nil {
		return r, nil, err
	}
	return r, map[string]any{
		"MessageId":        x.opts.NewToken(),
		"MD5OfMessageBody": md5Hex(body),
	}, nil
}

type startExecutionInput struct {
	StateMachineArn string `json:"StateMachineArn" validate:"required"`
	Name            string `json:"Name"`
	Input           any    `json:"Input"`
}

// nestedExecution resolves and runs a nested state machine. The returned map
// carries the ExecutionArn all three startExecution flavours report.
func (x *Executor) nestedExecution(e *Execution, input any, wait bool) (Resource, map[string]any, any, error) {
	in, err := decodeInput[startExecutionInput](input, "states:startExecution")
	if err != nil {
		return nil, nil, nil, err
	}
	name := lastSegment(in.StateMachineArn, ":")
	r, err := x.lookup(ServiceStepFunctions, name, "State machine [%s] not found")
	if err != nil {
		return nil, nil, nil, err
	}
	machine, ok := r.(Executable)
	if !ok {
		return r, nil, nil, states.NewTaskFailed("State machine [%s] cannot be executed", name)
	}

	executionName := in.Name
	if executionName == "" {
		executionName = x.opts.NewToken()
	}
	response := map[string]any{
		"ExecutionArn": executionARN(x.opts.Region, x.opts.AccountID, name, executionName),
	}

	nestedInput := decodeNestedInput(in.Input)
	output, err := machine.Execute(e, nestedInput)
	if err != nil {
		if wait {
			return r, nil, nil, err
		}
		x.l.WarnContext(e, fmt.Sprintf("Started execution of %s failed", name), "error", err)
	}
	return r, response, output, nil
}

// decodeNestedInput accepts Input as an object or as its JSON encoding.
func decodeNestedInput(input any) any {
	s, ok := input.(string)
	if !ok {
		return input
	}
	var decoded any
	if err := json.Unmarshal([]byte(s), &decoded); err != nil {
		return s
	}
	return decoded
}

func (x *Executor) startExecution(e *Execution, input any) (Resource, any, error) {
	r, response, _, err := x.nestedExecution(e, input, false)
	if err != nil {
		return r, nil, err
	}
	response["StartDate"] = x.opts.Now().UTC().Format(timestampLayout)
	return r, response, nil
}

func (x *Executor) startExecutionSync(e *Execution, input any) (Resource, any, error) {
	r, response, output, err := x.nestedExecution(e, input, true)
	if err != nil {
		return r, nil, err
	}
	encoded, err := json.Marshal(output)
	if err != nil {
		return r, nil, err
	}
	response["Output"] = string(encoded)
	response["Status"] = "SUCCEEDED"
	return r, response, nil
}

func (x *Executor) startExecutionSyncObject(e *Execution, input any) (Resource, any, error) {
	r, response, output, err := x.nestedExecution(e, input, true)
	if err != nil {
		return r, nil, err
	}
	response["Output"] = output
	response["Status"] = "SUCCEEDED"
	return r, response, nil
}

type httpInvokeInput struct {
	ApiEndpoint    string `json:"ApiEndpoint" validate:"required"`
	Method         string `json:"Method" validate:"required,oneof=GET POST PUT DELETE PATCH HEAD OPTIONS"`
	Authentication struct {
		ConnectionArn string `json:"ConnectionArn"`
	} `json:"Authentication"`
}

func (x *Executor) invokeHTTP(e *Execution, input any) (Resource, any, error) {
	in, err := decodeInput[httpInvokeInput](input, "http:invoke")
	if err != nil {
		return nil, nil, err
	}
	name := connectionName(in.Authentication.ConnectionArn)
	r, err := x.lookup(ServiceHTTP, name, "HTTP connection [%s] not found")
	if err != nil {
		return nil, nil, err
	}
	invoker, ok := r.(Invoker)
	if !ok {
		return r, nil, states.NewTaskFailed("HTTP connection [%s] cannot be invoked", name)
	}
	result, err := invoker.Invoke(e, in.Method, input)
	return r, result, err
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
