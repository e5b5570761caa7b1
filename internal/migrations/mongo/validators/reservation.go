package validators

import "go.mongodb.org/mongo-driver/bson"

var objectIDString = bson.M{
	"bsonType":  "string",
	"minLength": 24,
	"maxLength": 24,
}

var ReservationValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"media_id",
			"user_id",
			"start_date",
			"end_date",
			"total_price",
			"platform_fee",
			"owner_amount",
			"status",
			"payment_status",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id":      bson.M{"bsonType": "objectId"},
			"media_id": objectIDString,
			"user_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},
			"start_date": bson.M{"bsonType": "date"},
			"end_date":   bson.M{"bsonType": "date"},

			"total_price": bson.M{
				"bsonType": "long",
				"minimum":  1,
			},
			"platform_fee": bson.M{
				"bsonType": "long",
				"minimum":  0,
			},
			"owner_amount": bson.M{
				"bsonType": "long",
				"minimum":  0,
			},

			"status": bson.M{
				"bsonType": "string",
				"enum":     []string{"pending", "confirmed", "completed", "cancelled"},
			},
			"payment_status": bson.M{
				"bsonType": "string",
				"enum":     []string{"pending", "held", "released"},
			},

			"campaign_id":       objectIDString,
			"campaign_media_id": objectIDString,
			"created_at":        bson.M{"bsonType": "date"},
			"released_at":       bson.M{"bsonType": "date"},
		},
	},
}
