package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

type Querier interface {
	BumpConversation(ctx context.Context, arg BumpConversationParams) error
	CountCouponUsageByUser(ctx context.Context, arg CountCouponUsageByUserParams) (int64, error)
	CountOrdersByStore(ctx context.Context, arg CountOrdersByStoreParams) (int64, error)
	CountOrdersByUser(ctx context.Context, arg CountOrdersByUserParams) (int64, error)
	CountProducts(ctx context.Context, arg CountProductsParams) (int64, error)
	CountUnreadNotifications(ctx context.Context, recipientID pgtype.UUID) (int64, error)
	CreateCoupon(ctx context.Context, arg CreateCouponParams) (Coupon, error)
	CreateFlashSale(ctx context.Context, arg CreateFlashSaleParams) (FlashSale, error)
	CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error)
	CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error)
	CreateProduct(ctx context.Context, arg CreateProductParams) (Product, error)
	CreateProductSize(ctx context.Context, arg CreateProductSizeParams) (ProductSize, error)
	CreateStore(ctx context.Context, arg CreateStoreParams) (Store, error)
	DecrementSizeStock(ctx context.Context, arg DecrementSizeStockParams) (int64, error)
	DeleteFlashSaleProduct(ctx context.Context, arg DeleteFlashSaleProductParams) (int64, error)
	DeleteShippingRate(ctx context.Context, arg DeleteShippingRateParams) (int64, error)
	GetActiveRule(ctx context.Context, arg GetActiveRuleParams) (ActiveRuleRow, error)
	GetConversation(ctx context.Context, id pgtype.UUID) (Conversation, error)
	GetCouponByCode(ctx context.Context, arg GetCouponByCodeParams) (Coupon, error)
	GetCouponByCodeForUpdate(ctx context.Context, arg GetCouponByCodeParams) (Coupon, error)
	GetDailySales(ctx context.Context, arg GetStoreOverviewParams) ([]GetDailySalesRow, error)
	GetFlashSale(ctx context.Context, id pgtype.UUID) (FlashSale, error)
	GetOrCreateConversation(ctx context.Context, arg GetOrCreateConversationParams) (Conversation, error)
	GetOrder(ctx context.Context, arg GetOrderParams) (Order, error)
	GetProductByID(ctx context.Context, arg GetProductByIDParams) (Product, error)
	GetProductBySlug(ctx context.Context, arg GetProductBySlugParams) (Product, error)
	GetStoreByKey(ctx context.Context, key string) (Store, error)
	GetStoreOverview(ctx context.Context, arg GetStoreOverviewParams) (GetStoreOverviewRow, error)
	GetTopProducts(ctx context.Context, arg GetTopProductsParams) ([]GetTopProductsRow, error)
	IncrementCouponUsage(ctx context.Context, id pgtype.UUID) (int64, error)
	InsertChatMessage(ctx context.Context, arg InsertChatMessageParams) (ChatMessage, error)
	InsertCouponUsage(ctx context.Context, arg InsertCouponUsageParams) (CouponUsage, error)
	InsertDomainEvent(ctx context.Context, arg InsertDomainEventParams) (DomainEvent, error)
	InsertNotification(ctx context.Context, arg InsertNotificationParams) (Notification, error)
	ListActiveFlashSales(ctx context.Context, arg ListActiveFlashSalesParams) ([]FlashSale, error)
	ListActiveRules(ctx context.Context, arg ListActiveRulesParams) ([]ActiveRuleRow, error)
	ListChatMessages(ctx context.Context, arg ListChatMessagesParams) ([]ChatMessage, error)
	ListConversationsByCustomer(ctx context.Context, arg ListConversationsByCustomerParams) ([]Conversation, error)
	ListConversationsByStore(ctx context.Context, arg ListConversationsByStoreParams) ([]Conversation, error)
	ListCouponsByStore(ctx context.Context, storeID pgtype.UUID) ([]Coupon, error)
	ListFlashSaleProducts(ctx context.Context, flashSaleID pgtype.UUID) ([]FlashSaleProduct, error)
	ListFlashSalesByStore(ctx context.Context, arg ListFlashSalesByStoreParams) ([]FlashSale, error)
	ListNotifications(ctx context.Context, arg ListNotificationsParams) ([]Notification, error)
	ListOrderItems(ctx context.Context, orderID pgtype.UUID) ([]OrderItem, error)
	ListOrdersByStore(ctx context.Context, arg ListOrdersByStoreParams) ([]Order, error)
	ListOrdersByUser(ctx context.Context, arg ListOrdersByUserParams) ([]Order, error)
	ListProducts(ctx context.Context, arg ListProductsParams) ([]Product, error)
	ListShippingRates(ctx context.Context, storeID pgtype.UUID) ([]ShippingRate, error)
	ListSizesByProductIDs(ctx context.Context, productIds []pgtype.UUID) ([]ProductSize, error)
	ListSizesWithProduct(ctx context.Context, arg ListSizesWithProductParams) ([]ListSizesWithProductRow, error)
	MarkAllNotificationsRead(ctx context.Context, recipientID pgtype.UUID) (int64, error)
	MarkConversationRead(ctx context.Context, arg MarkConversationReadParams) error
	MarkNotificationRead(ctx context.Context, arg MarkNotificationReadParams) (int64, error)
	SetCouponActive(ctx context.Context, arg SetCouponActiveParams) (Coupon, error)
	SetFlashSaleActive(ctx context.Context, arg SetFlashSaleActiveParams) (FlashSale, error)
	UpdateFlashSale(ctx context.Context, arg UpdateFlashSaleParams) (FlashSale, error)
	UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error)
	UpsertFlashSaleProduct(ctx context.Context, arg UpsertFlashSaleProductParams) (FlashSaleProduct, error)
	UpsertShippingRate(ctx context.Context, arg UpsertShippingRateParams) (ShippingRate, error)
}

var _ Querier = (*Queries)(nil)
