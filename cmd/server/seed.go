package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tasknest/internal/db"
	appLog "github.com/tasknest/internal/log"
	"github.com/tasknest/internal/model"
	"github.com/tasknest/internal/recurrence"
	"github.com/tasknest/internal/service"
)

func seedCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the admin user and a set of sample tasks and todos",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := loadRuntime(*configPath)
			if err != nil {
				return err
			}

			created, err := db.EnsureUser(rt.db, rt.cfg.AdminUserName, rt.cfg.AdminPassword)
			if err != nil {
				return err
			}
			if created {
				fmt.Fprintf(cmd.OutOrStdout(), "用户: %s\n", rt.cfg.AdminUserName)
			}

			items := service.NewItemService(service.NewStore(rt.db))
			n, err := seedItems(cmd.Context(), items, recurrence.Today(time.Now(), rt.loc))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "示例条目: %d\n", n)
			return nil
		},
	}
}

type seedItem struct {
	kind   model.Kind
	offset int
	input  service.ItemInput
}

// 示例数据，offset 为相对今天的天数
var seedData = []seedItem{
	{model.KindTask, 0, service.ItemInput{Title: "整理本周计划", Notes: "- 回顾上周\n- 列出 **三件** 最重要的事", Priority: "high"}},
	{model.KindTask, 2, service.ItemInput{Title: "交物业费", Priority: "urgent"}},
	{model.KindTask, -1, service.ItemInput{Title: "晨跑", RecurrencePattern: "weekly", RecurrenceConfig: `{"weekDays":[1,3,5]}`}},
	{model.KindTask, 0, service.ItemInput{Title: "吃维生素", RecurrencePattern: "daily"}},
	{model.KindTask, 0, service.ItemInput{Title: "信用卡还款", RecurrencePattern: "monthly", RecurrenceConfig: `{"dayOfMonth":25}`, Priority: "high"}},
	{model.KindTodo, 1, service.ItemInput{Title: "给花浇水", RecurrencePattern: "weekly"}},
	{model.KindTodo, 3, service.ItemInput{Title: "买牛奶和鸡蛋"}},
	{model.KindTodo, 0, service.ItemInput{Title: "续订域名", RecurrencePattern: "yearly"}},
	{model.KindTodo, 5, service.ItemInput{Title: "读完《人月神话》", Notes: "[豆瓣](https://book.douban.com/)"}},
}

// seedItems 在两张表都为空时写入示例数据，否则什么都不做
func seedItems(ctx context.Context, items *service.ItemService, today time.Time) (int, error) {
	for _, kind := range model.Kinds {
		existing, err := items.List(ctx, kind, nil)
		if err != nil {
			return 0, err
		}
		if len(existing) > 0 {
			appLog.Info("seed: items already present, skipping", "type", kind, "count", len(existing))
			return 0, nil
		}
	}

	created := 0
	for _, s := range seedData {
		input := s.input
		input.DueDate = recurrence.FormatDate(recurrence.AddDays(today, s.offset))
		if _, err := items.Create(ctx, s.kind, input); err != nil {
			return created, fmt.Errorf("seed %s %q: %w", s.kind, input.Title, err)
		}
		created++
	}
	return created, nil
}
