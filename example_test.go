package agentloop_test

import (
	"context"
	"fmt"
	"log"

	"github.com/aretw0/agentloop"
	"github.com/aretw0/agentloop/pkg/adapters/mockmodel"
	"github.com/aretw0/agentloop/pkg/domain"
	"github.com/aretw0/agentloop/pkg/registry"
	"github.com/aretw0/agentloop/pkg/tools/weather"
)

// ExampleEngine_RunTurn streams a weather question through the model and tool nodes.
func ExampleEngine_RunTurn() {
	reg := registry.NewRegistry()
	weather.Register(reg)

	eng, err := agentloop.New(mockmodel.New(mockmodel.WithTools(reg), mockmodel.WithChunkDelay(0)), reg)
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	for ev := range eng.RunTurn(ctx, "demo", "上海天气怎么样?") {
		switch ev.Type {
		case domain.EventCommitted:
			fmt.Printf("%s: %s\n", ev.Message.Role, ev.Message.Content)
		case domain.EventRunFailed:
			log.Fatal(ev.Err)
		}
	}

	history, _ := eng.History(ctx, "demo")
	fmt.Println(len(history), "messages")
	// Output:
	// model: 将要调用get_weather工具查询信息...
	// tool: Mock天气: 上海 晴朗，25°C
	// model: 查询结果：Mock天气: 上海 晴朗，25°C
	// 4 messages
}

// ExampleEngine_Invoke runs a question without streaming.
func ExampleEngine_Invoke() {
	reg := registry.NewRegistry()
	weather.Register(reg)

	eng, err := agentloop.New(mockmodel.New(mockmodel.WithTools(reg), mockmodel.WithChunkDelay(0)), reg)
	if err != nil {
		log.Fatal(err)
	}

	final, err := eng.Invoke(context.Background(), "demo", "今天心情怎么样")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(final.Content)
	// Output:
	// 你的问题我无法回答...
}
