package config

import (
	"context"
	"fmt"

	httpplugin "github.com/BDNK1/sfnsim/plugins/http"
	redisplugin "github.com/BDNK1/sfnsim/plugins/redis"
	"github.com/BDNK1/sfnsim/runtime"
	"github.com/BDNK1/sfnsim/runtime/plugin"
	"github.com/Jeffail/gabs/v2"
)

// Catalog builds the resources of the file. Redis connections are listed
// first so the catalog initializes them before anything that uses them.
func (f *File) Catalog() ([]runtime.Resource, error) {
	r := f.Resources
	var resources []runtime.Resource

	connections := make(map[string]*redisplugin.Connection, len(r.Redis))
	for _, name := range sortedKeys(r.Redis) {
		var cfg redisplugin.Config
		if err := plugin.InitializeConfig(&cfg, r.Redis[name]); err != nil {
			return nil, fmt.Errorf("resources.redis.%s: %w", name, err)
		}
		conn := redisplugin.New(name, cfg)
		connections[name] = conn
		resources = append(resources, conn)
	}

	for _, name := range sortedKeys(r.Lambda) {
		fn, err := buildLambda(name, r.Lambda[name])
		if err != nil {
			return nil, fmt.Errorf("resources.lambda.%s: %w", name, err)
		}
		resources = append(resources, fn)
	}

	for _, name := range sortedKeys(r.S3) {
		bucket := r.S3[name]
		if bucket.Redis != "" {
			resources = append(resources, plugin.Bucket(name, connections[bucket.Redis].Objects(name)))
			continue
		}
		resources = append(resources, runtime.NewBucket(name, bucket.Objects))
	}

	for _, name := range sortedKeys(r.SNS) {
		if conn := r.SNS[name].Redis; conn != "" {
			resources = append(resources, plugin.Topic(name, connections[conn].Messages(plugin.ServiceSNS, name)))
			continue
		}
		resources = append(resources, runtime.NewTopic(name))
	}

	for _, name := range sortedKeys(r.SQS) {
		if conn := r.SQS[name].Redis; conn != "" {
			resources = append(resources, plugin.Queue(name, connections[conn].Messages(plugin.ServiceSQS, name)))
			continue
		}
		resources = append(resources, runtime.NewQueue(name))
	}

	for _, name := range sortedKeys(r.HTTP) {
		endpoint := &httpplugin.Endpoint{Name: name}
		if err := plugin.InitializeConfig(&endpoint.Config, r.HTTP[name]); err != nil {
			return nil, fmt.Errorf("resources.http.%s: %w", name, err)
		}
		resources = append(resources, endpoint)
	}

	return resources, nil
}

func buildLambda(name string, l Lambda) (runtime.Resource, error) {
	if l.URL != "" {
		fn := &httpplugin.RemoteFunction{Name: name, URL: l.URL}
		if err := plugin.InitializeConfig(&fn.Config, l.Client); err != nil {
			return nil, err
		}
		return fn, nil
	}

	if l.Error != "" {
		return &runtime.Lambda{Name: name, Function: func(context.Context, any) (any, error) {
			return nil, plugin.NewError(l.Error, l.Cause)
		}}, nil
	}

	encoded := gabs.Wrap(l.Response).Bytes()
	return &runtime.Lambda{Name: name, Function: func(context.Context, any) (any, error) {
		// A fresh copy per call, with numbers as float64 like any JSON input.
		parsed, err := gabs.ParseJSON(encoded)
		if err != nil {
			return nil, err
		}
		return parsed.Data(), nil
	}}, nil
}
