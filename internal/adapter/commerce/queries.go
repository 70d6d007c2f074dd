package commerce

const cartFragment = `
fragment CartFields on Cart {
  _id
  shop { _id }
  items(first: 100) {
    totalCount
    pageInfo { hasNextPage endCursor }
    edges {
      cursor
      node {
        _id
        title
        variantTitle
        quantity
        addedAt
        productConfiguration { productId productVariantId }
        price { amount displayAmount currency { code } }
      }
    }
  }
  checkout {
    fulfillmentGroups {
      _id
      type
      data { shippingAddress { _id } }
      shop { _id }
      availableFulfillmentOptions {
        fulfillmentMethod { _id name displayName }
        price { amount displayAmount currency { code } }
      }
      selectedFulfillmentOption {
        fulfillmentMethod { _id name displayName }
        price { amount displayAmount currency { code } }
      }
    }
    summary {
      itemTotal { amount displayAmount currency { code } }
      total { amount displayAmount currency { code } }
    }
  }
}`

const cartQuery = `
query cartById($cartId: ID!, $cartToken: String) {
  cart: cartById(cartId: $cartId, cartToken: $cartToken) { ...CartFields }
}` + cartFragment

const createCartMutation = `
mutation createCart($input: CreateCartInput!) {
  createCart(input: $input) {
    cart { ...CartFields }
    token
  }
}` + cartFragment

const addCartItemsMutation = `
mutation addCartItems($input: AddCartItemsInput!) {
  addCartItems(input: $input) {
    cart { ...CartFields }
  }
}` + cartFragment

const removeCartItemsMutation = `
mutation removeCartItems($input: RemoveCartItemsInput!) {
  removeCartItems(input: $input) {
    cart { ...CartFields }
  }
}` + cartFragment

const setShippingAddressMutation = `
mutation setShippingAddressOnCart($input: SetShippingAddressOnCartInput!) {
  setShippingAddressOnCart(input: $input) {
    cart { ...CartFields }
  }
}` + cartFragment

const selectFulfillmentOptionMutation = `
mutation selectFulfillmentOptionForGroup($input: SelectFulfillmentOptionForGroupInput!) {
  selectFulfillmentOptionForGroup(input: $input) {
    cart { ...CartFields }
  }
}` + cartFragment

const placeOrderMutation = `
mutation placeOrder($input: PlaceOrderInput!) {
  placeOrder(input: $input) {
    orders { _id }
    token
  }
}`
