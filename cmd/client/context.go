package main

import "context"

func withApp(ctx context.Context, a *app) context.Context {
	return context.WithValue(ctx, appKey{}, a)
}

func appFrom(ctx context.Context) *app {
	return ctx.Value(appKey{}).(*app)
}
