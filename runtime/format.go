package runtime

import (
	"fmt"
	"strings"
)

const (
	lambdaARNPrefix     = "arn:aws:lambda:"
	lambdaFunctionToken = ":function:"
	connectionToken     = "connection/"
	defaultConnection   = "default"
	waitForTokenSuffix  = ".waitForTaskToken"
)

// isLambdaFunctionARN reports whether resource is a bare Lambda function ARN
// such as arn:aws:lambda:us-east-1:123456789012:function:name.
func isLambdaFunctionARN(resource string) bool {
	return strings.HasPrefix(resource, lambdaARNPrefix) && strings.Contains(resource, lambdaFunctionToken)
}

// lambdaFunctionName accepts a function ARN, a partial name:alias or a plain
// name and returns the plain name.
func lambdaFunctionName(ref string) string {
	if _, after, ok := strings.Cut(ref, lambdaFunctionToken); ok {
		ref = after
	}
	name, _, _ := strings.Cut(ref, ":")
	return name
}

// lastSegment returns what follows the last sep in s, or s itself.
func lastSegment(s, sep string) string {
	if i := strings.LastIndex(s, sep); i >= 0 {
		return s[i+len(sep):]
	}
	return s
}

// connectionName extracts NAME from an EventBridge connection ARN of the form
// arn:aws:events:region:account:connection/NAME/id.
func connectionName(arn string) string {
	_, after, ok := strings.Cut(arn, connectionToken)
	if !ok || after == "" {
		return defaultConnection
	}
	name, _, _ := strings.Cut(after, "/")
	return name
}

func stateMachineARN(region, account, machine string) string {
	return fmt.Sprintf("arn:aws:states:%s:%s:stateMachine:%s", region, account, machine)
}

func executionARN(region, account, machine, execution string) string {
	return fmt.Sprintf("arn:aws:states:%s:%s:execution:%s:%s", region, account, machine, execution)
}

func roleARN(account, machine string) string {
	return fmt.Sprintf("arn:aws:iam::%s:role/StepFunctions-%s-role", account, machine)
}
